package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "greedos",
	Short: "GreeDos DDoS simulation and forensic dashboard",
	Long: "GreeDos simulates multi-threaded request load against a target without sending any traffic, " +
		"synthesizes packet observations, raises traffic alerts and keeps a forensic event log.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(grafanaCmd)
}
