package commands

import (
	"fmt"

	"demand-matrix/internal/store"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Load skills, staff, clients, tasks and forecast periods into the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := store.LoadSeed(args[0])
		if err != nil {
			return err
		}

		st, err := store.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Import(cmd.Context(), seed)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d skills, %d staff, %d clients, %d tasks, %d periods into %s\n",
			stats.Skills, stats.Staff, stats.Clients, stats.Tasks, stats.Periods, cfg.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
