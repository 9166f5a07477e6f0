package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "simex",
	Short: "A deterministic leveraged futures exchange emulator",
	Long: `Simex replays historical minute klines to emulate a leveraged futures
exchange, so automated strategies can be evaluated deterministically offline.

It provides tools for:
  - Serving an exchange-shaped HTTP API over replayed candle data
  - Stepping simulated time with per-bar TP/SL trigger resolution
  - Margin, commission and slippage accounting on one emulated account
  - Crash-safe state snapshots between runs
  - Journaling fills and equity curves to CSV or SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON); defaults apply when omitted")
}
