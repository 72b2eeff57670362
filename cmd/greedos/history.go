package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"greedos/internal/config"
	"greedos/internal/storage"
)

var (
	historyDBPath string
	historyLimit  int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the latest persisted forensic events",
	Long:  "history reads the SQLite forensic database written by earlier simulate runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("limit must be positive, got %d", historyLimit)
		}
		if _, err := os.Stat(historyDBPath); err != nil {
			return fmt.Errorf("forensic database %s: %w", historyDBPath, err)
		}
		db, err := storage.NewSQLiteSink(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		recs, err := db.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			for _, r := range recs {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		}

		total, err := db.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d of %d events in %s\n", len(recs), total, db.Path())
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTime\tRun\tType\tDetails")
		for _, r := range recs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Timestamp.Local().Format(time.DateTime), shortRunID(r.RunID), r.EventType, r.Details)
		}
		return tw.Flush()
	},
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPath, "db", config.DefaultSettings().DBPath, "Path to the SQLite forensic database")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of events to print")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print events as JSON lines")
}
