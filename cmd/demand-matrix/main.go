package main

import (
	"fmt"
	"os"

	"demand-matrix/cmd/demand-matrix/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
