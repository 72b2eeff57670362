// Package runner wires the simulator components together for one run.
package runner

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"greedos/internal/admin"
	"greedos/internal/config"
	"greedos/internal/dashboard"
	"greedos/internal/forensic"
	"greedos/internal/logging"
	"greedos/internal/sim"
	"greedos/internal/storage"
)

// RunIDEnv overrides the generated run identifier.
const RunIDEnv = "GREEDOS_RUN_ID"

// NewRunID returns the run identifier stamped on persisted events.
func NewRunID() string {
	if id := os.Getenv(RunIDEnv); id != "" {
		return id
	}
	return uuid.NewString()
}

// Deps are the inputs of a run.
type Deps struct {
	Config   config.RunConfig
	Settings config.Settings
	RunID    string
	// Sink mirrors every forensic event. Nil keeps events in memory only.
	Sink     storage.Sink
	Renderer dashboard.Renderer
	// AdminAddr enables the HTTP status server when set.
	AdminAddr string
	// ExitOnComplete ends the run once every load worker has finished.
	ExitOnComplete bool
	Logger         *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	RunID       string
	Load        sim.Report
	Packets     sim.MonitorStats
	Alerts      []sim.Alert
	Mirror      forensic.MirrorStats
	Interrupted bool
}

type nopRenderer struct{}

func (nopRenderer) Render(dashboard.Snapshot) error { return nil }

// adminAware renderers show where the admin server listens.
type adminAware interface {
	SetAdminAddr(addr string)
}

// Run builds every component, starts the load generator and packet monitor
// as background tasks, and drives the dashboard on the calling goroutine
// until ctx is done. Background tasks are joined and the event mirror is
// drained before Run returns.
func Run(ctx context.Context, deps Deps) (Report, error) {
	if err := deps.Config.Validate(); err != nil {
		return Report{}, err
	}
	st := deps.Settings
	if err := st.Validate(); err != nil {
		return Report{}, err
	}
	log := deps.Logger
	if log == nil {
		log = logging.FromContext(ctx)
	}
	if deps.RunID == "" {
		deps.RunID = NewRunID()
	}
	if deps.Renderer == nil {
		deps.Renderer = nopRenderer{}
	}
	log = log.With("run_id", deps.RunID)

	events := forensic.NewEventLog(forensic.Options{
		Capacity:     st.LogCapacity,
		Sink:         deps.Sink,
		RunID:        deps.RunID,
		MirrorBuffer: st.MirrorBuffer,
		Logger:       log,
	})

	genOpts := []sim.Option{
		sim.WithJitter(sim.Jitter{Base: st.JitterBase, Spread: st.JitterSpread}),
		sim.WithLogger(log),
	}
	monSeed := int64(0)
	if st.Seed != 0 {
		genOpts = append(genOpts, sim.WithSeed(st.Seed))
		// workers use seed..seed+N-1
		monSeed = st.Seed + int64(deps.Config.Workers)
	}
	gen := sim.NewLoadGenerator(deps.Config, events, genOpts...)
	mon := sim.NewPacketMonitor(events, sim.MonitorOptions{
		IntervalMin: st.PacketIntervalMin,
		IntervalMax: st.PacketIntervalMax,
		AnomalyRate: st.AnomalyRate,
		Seed:        monSeed,
		Logger:      log,
	})
	detector := sim.NewAlertDetector(gen.Counter(), events, st.AlertThreshold, sim.AlertMode(st.AlertMode))
	dash := dashboard.New(gen, events, detector, deps.Renderer, dashboard.Options{
		RunID:        deps.RunID,
		Interval:     st.RefreshInterval,
		RecentEvents: st.RecentEvents,
		RecentAlerts: st.RecentAlerts,
		Monitor:      mon,
		Logger:       log,
	})

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(bgCtx)

	var loadReport sim.Report
	genDone := make(chan struct{})
	g.Go(func() error {
		defer close(genDone)
		loadReport = gen.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return mon.Run(gctx)
	})
	if deps.AdminAddr != "" {
		srv := admin.NewServer(dash, events, detector, gen, log)
		g.Go(func() error {
			return srv.Start(gctx, deps.AdminAddr)
		})
		if a, ok := deps.Renderer.(adminAware); ok {
			a.SetAdminAddr(deps.AdminAddr)
		}
	}

	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()
	if deps.ExitOnComplete {
		go func() {
			select {
			case <-genDone:
				stopLoop()
			case <-loopCtx.Done():
			}
		}()
	}

	log.Info("run starting", "target", deps.Config.Target, "workers", deps.Config.Workers, "duration", deps.Config.Duration)
	begin := time.Now()
	if err := dash.RunLoop(loopCtx); err != nil {
		log.Warn("dashboard loop ended", "error", err)
	}

	gen.Stop()
	cancel()
	err := g.Wait()

	// last frame reflects the final counts
	if tickErr := dash.Tick(); tickErr != nil {
		log.Warn("final dashboard render failed", "error", tickErr)
	}
	events.Close()

	rep := Report{
		RunID:       deps.RunID,
		Load:        loadReport,
		Packets:     mon.Stats(),
		Alerts:      detector.Alerts(),
		Mirror:      events.MirrorStats(),
		Interrupted: ctx.Err() != nil,
	}
	log.Info("run finished",
		"requests", rep.Load.Requests,
		"alerts", len(rep.Alerts),
		"packets", rep.Packets.Packets,
		"mirror_written", rep.Mirror.Written,
		"mirror_failed", rep.Mirror.Failed,
		"mirror_dropped", rep.Mirror.Dropped,
		"elapsed", time.Since(begin),
	)
	return rep, err
}
