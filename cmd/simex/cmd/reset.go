package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/simex/state"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted simulation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := state.NewStore(cfg.Data.StatePath)
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}

		fmt.Printf("cleared state at %s\n", cfg.Data.StatePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
