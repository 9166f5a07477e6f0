package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/simex/sim"
	"github.com/rustyeddy/simex/state"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a summary of the persisted simulation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := state.NewStore(cfg.Data.StatePath)
		if err != nil {
			return err
		}

		snap, err := store.Load()
		if errors.Is(err, sim.ErrNotFound) {
			fmt.Println("no saved state")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("snapshot v%d at %s (step %s)\n",
			snap.Version, snap.Time.Format(time.RFC3339), snap.Step)
		fmt.Printf("balance %.2f  used margin %.2f  realized pnl %.2f\n",
			snap.Balance, snap.UsedMargin, snap.RealizedPL)
		fmt.Printf("%d open positions, %d orders\n", len(snap.Positions), len(snap.Orders))

		for _, p := range snap.Positions {
			side := "LONG"
			if p.Side == sim.Sell {
				side = "SHORT"
			}
			fmt.Printf("  %-12s %-5s size %.6f entry %.4f lev %dx\n",
				p.Symbol, side, p.Size, p.EntryPrice, p.Leverage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
