package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"demand-matrix/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "steady", "Scenario to generate: steady, seasonal, messy")
	outDir := flag.String("out", "./.cache", "Output directory for the seed file")
	clients := flag.Int("clients", 25, "Number of clients to generate")
	count := flag.Int("count", 200, "Number of tasks to generate")
	months := flag.Int("months", 12, "Number of forecast periods")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Clients:  *clients,
		Tasks:    *count,
		Months:   *months,
		Seed:     *seed,
		Now:      time.Now(),
	}

	fmt.Printf("Generating scenario '%s' (Clients: %d, Tasks: %d) to %s...\n", cfg.Scenario, cfg.Clients, cfg.Tasks, *outDir)

	path, err := engine.Save(*outDir, "seed_"+cfg.Scenario, engine.Generate(cfg))
	if err != nil {
		fmt.Printf("Failed to save seed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Load it with: demand-matrix import %s\n", path)
}
