package dashboard

import (
	"context"
	"log/slog"
	"time"

	"greedos/internal/config"
	"greedos/internal/forensic"
	"greedos/internal/logging"
	"greedos/internal/metrics"
	"greedos/internal/sim"
)

// Snapshot is a read-only view of a run at one instant.
type Snapshot struct {
	RunID     string           `json:"run_id"`
	Target    string           `json:"target"`
	Workers   int              `json:"workers"`
	Duration  time.Duration    `json:"duration"`
	Requests  uint64           `json:"requests"`
	Running   bool             `json:"running"`
	Events    []forensic.Event `json:"events"`
	Alerts    []sim.Alert      `json:"alerts"`
	Packets   uint64           `json:"packets"`
	Anomalies uint64           `json:"anomalies"`
	TakenAt   time.Time        `json:"taken_at"`
}

// Renderer draws snapshots.
type Renderer interface {
	Render(Snapshot) error
}

// Generator is the load generator state the dashboard reads.
type Generator interface {
	Config() config.RunConfig
	Requests() uint64
	Running() bool
}

// EventReader exposes the most recent forensic events.
type EventReader interface {
	Recent(n int) []forensic.Event
}

// AlertSource runs a detection pass and returns the alerts fired so far.
type AlertSource interface {
	Check() []sim.Alert
	Recent(n int) []sim.Alert
}

// PacketStats exposes packet monitor counts.
type PacketStats interface {
	Stats() sim.MonitorStats
}

// Options configures a Dashboard.
type Options struct {
	RunID        string
	Interval     time.Duration
	RecentEvents int
	RecentAlerts int
	Monitor      PacketStats
	Logger       *slog.Logger
	Now          func() time.Time
}

// Dashboard periodically drives the alert detector and renders a snapshot.
type Dashboard struct {
	gen      Generator
	events   EventReader
	alerts   AlertSource
	renderer Renderer
	opts     Options
	log      *slog.Logger
}

// New creates a dashboard. Zero option values take the shipped defaults.
func New(gen Generator, events EventReader, alerts AlertSource, r Renderer, opts Options) *Dashboard {
	def := config.DefaultSettings()
	if opts.Interval <= 0 {
		opts.Interval = def.RefreshInterval
	}
	if opts.RecentEvents <= 0 {
		opts.RecentEvents = def.RecentEvents
	}
	if opts.RecentAlerts <= 0 {
		opts.RecentAlerts = def.RecentAlerts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	return &Dashboard{gen: gen, events: events, alerts: alerts, renderer: r, opts: opts, log: log}
}

// Snapshot gathers the current state without mutating anything.
func (d *Dashboard) Snapshot() Snapshot {
	cfg := d.gen.Config()
	s := Snapshot{
		RunID:    d.opts.RunID,
		Target:   cfg.Target,
		Workers:  cfg.Workers,
		Duration: cfg.Duration,
		Requests: d.gen.Requests(),
		Running:  d.gen.Running(),
		Events:   d.events.Recent(d.opts.RecentEvents),
		Alerts:   d.alerts.Recent(d.opts.RecentAlerts),
		TakenAt:  d.opts.Now(),
	}
	if d.opts.Monitor != nil {
		st := d.opts.Monitor.Stats()
		s.Packets, s.Anomalies = st.Packets, st.Anomalies
	}
	return s
}

// Tick runs one detection pass and renders the result.
func (d *Dashboard) Tick() error {
	begin := time.Now()
	d.alerts.Check()
	err := d.renderer.Render(d.Snapshot())
	metrics.DashboardRenderDuration.Observe(time.Since(begin).Seconds())
	return err
}

// RunLoop ticks immediately and then every interval until ctx is done.
// Render failures are logged and do not stop the loop.
func (d *Dashboard) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()
	for {
		if err := d.Tick(); err != nil {
			d.log.Warn("dashboard render failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
