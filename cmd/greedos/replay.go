package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"greedos/internal/config"
	"greedos/internal/storage"
)

var (
	replayInput  string
	replaySpeed  float64
	replayDBPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an exported forensic event log",
	Long:  "replay feeds events from a --log-file export back into the SQLite database and any configured GreptimeDB.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		sink, closeSinks, err := newSinks(replayDBPath, "")
		if err != nil {
			return err
		}
		defer closeSinks()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		n, err := storage.ReplayFile(ctx, replayInput, sink, replaySpeed)
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events from %s\n", n, replayInput)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to a JSONL event export")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().StringVar(&replayDBPath, "db", config.DefaultSettings().DBPath, "Path to the SQLite forensic database")
	replayCmd.MarkFlagRequired("input")
}
