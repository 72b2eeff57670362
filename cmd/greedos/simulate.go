package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"greedos/internal/config"
	"greedos/internal/logging"
	"greedos/internal/runner"
)

var (
	simTarget         string
	simThreads        int
	simDuration       int
	simConfigPath     string
	simSchemaPath     string
	simDBPath         string
	simLogFile        string
	simDebugLog       string
	simOutput         string
	simAdminAddr      string
	simAlertThreshold uint64
	simAlertMode      string
	simLogCapacity    int
	simSeed           int64
	simExitOnComplete bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated load test with the live forensic dashboard",
	Long: "simulate starts the load workers and the packet monitor and refreshes the dashboard until " +
		"interrupted. No traffic is sent to the target.",
	Example: "  greedos simulate --target 203.0.113.10 --threads 5 --duration 30",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}
		applyOverrides(cmd.Flags(), &settings)
		if err := settings.Validate(); err != nil {
			return err
		}
		runCfg := config.RunConfig{
			Target:   simTarget,
			Workers:  simThreads,
			Duration: time.Duration(simDuration) * time.Second,
		}
		if err := runCfg.Validate(); err != nil {
			return err
		}

		tty := stdoutIsTerminal()
		mode, err := resolveOutput(simOutput, tty)
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(mode, simDebugLog)
		if err != nil {
			return err
		}
		defer closeLog()

		sink, closeSinks, err := newSinks(settings.DBPath, simLogFile)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeSinks(); err != nil {
				log.Warn("closing sinks failed", "error", err)
			}
		}()

		renderer, closeRenderer, err := newRenderer(mode, cmd.OutOrStdout(), tty)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		rep, err := runner.Run(ctx, runner.Deps{
			Config:         runCfg,
			Settings:       settings,
			RunID:          runner.NewRunID(),
			Sink:           sink,
			Renderer:       renderer,
			AdminAddr:      simAdminAddr,
			ExitOnComplete: simExitOnComplete,
			Logger:         log,
		})
		closeRenderer()
		if err != nil {
			return err
		}
		printSummary(cmd.ErrOrStderr(), rep)
		return nil
	},
}

// applyOverrides copies explicitly set flags over file settings.
func applyOverrides(flags *pflag.FlagSet, st *config.Settings) {
	if flags.Changed("db") {
		st.DBPath = simDBPath
	}
	if flags.Changed("alert-threshold") {
		st.AlertThreshold = simAlertThreshold
	}
	if flags.Changed("alert-mode") {
		st.AlertMode = simAlertMode
	}
	if flags.Changed("log-capacity") {
		st.LogCapacity = simLogCapacity
	}
	if flags.Changed("seed") {
		st.Seed = simSeed
	}
}

func printSummary(w io.Writer, rep runner.Report) {
	if rep.Interrupted {
		fmt.Fprintln(w, "Tool terminated by user.")
	}
	fmt.Fprintf(w, "run %s: %d requests simulated, %d alerts, %d packets (%d suspicious)\n",
		rep.RunID, rep.Load.Requests, len(rep.Alerts), rep.Packets.Packets, rep.Packets.Anomalies)
	if rep.Load.Degraded() {
		fmt.Fprintf(w, "warning: %d of %d workers failed\n", rep.Load.Faulted, rep.Load.Workers)
		for _, f := range rep.Load.Faults {
			fmt.Fprintf(w, "  %v\n", f)
		}
	}
	if rep.Mirror.Failed > 0 || rep.Mirror.Dropped > 0 {
		fmt.Fprintf(w, "warning: %d events not persisted (%d failed, %d dropped)\n",
			rep.Mirror.Failed+rep.Mirror.Dropped, rep.Mirror.Failed, rep.Mirror.Dropped)
	}
}

func init() {
	def := config.DefaultSettings()
	f := simulateCmd.Flags()
	f.StringVar(&simTarget, "target", "", "Target URL or IP address for simulation")
	f.IntVar(&simThreads, "threads", 5, "Number of threads for attack simulation")
	f.IntVar(&simDuration, "duration", 30, "Duration of the simulation in seconds")
	f.StringVar(&simConfigPath, "config", "", "Path to settings YAML")
	f.StringVar(&simSchemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	f.StringVar(&simDBPath, "db", def.DBPath, "Path to the SQLite forensic database")
	f.StringVar(&simLogFile, "log-file", "", "Path to export forensic events (JSONL)")
	f.StringVar(&simDebugLog, "debug-log", "", "Path to write diagnostic logs")
	f.StringVar(&simOutput, "output", outputAuto, "Dashboard output: auto, tui, text or json")
	f.StringVar(&simAdminAddr, "admin-addr", "", "Serve the HTTP status API on this address (e.g. :8080)")
	f.Uint64Var(&simAlertThreshold, "alert-threshold", def.AlertThreshold, "Request count above which traffic alerts fire")
	f.StringVar(&simAlertMode, "alert-mode", def.AlertMode, "Alert deduplication: value or edge")
	f.IntVar(&simLogCapacity, "log-capacity", def.LogCapacity, "Number of forensic events kept in memory")
	f.Int64Var(&simSeed, "seed", 0, "Seed for reproducible runs (0 seeds from the clock)")
	f.BoolVar(&simExitOnComplete, "exit-on-complete", false, "Exit once every load worker has finished")
	simulateCmd.MarkFlagRequired("target")
}
