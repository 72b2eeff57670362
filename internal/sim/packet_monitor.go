package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"greedos/internal/forensic"
	"greedos/internal/logging"
)

// MonitorOptions configures a PacketMonitor.
type MonitorOptions struct {
	IntervalMin time.Duration
	IntervalMax time.Duration
	// AnomalyRate is the probability that an observation is also flagged suspicious.
	AnomalyRate float64
	Seed        int64
	Clock       Clock
	Logger      *slog.Logger
}

// DefaultMonitorOptions mirrors the tool's shipped timing.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		IntervalMin: 100 * time.Millisecond,
		IntervalMax: 500 * time.Millisecond,
		AnomalyRate: 0.05,
	}
}

// MonitorStats counts what the monitor has synthesized so far.
type MonitorStats struct {
	Packets   uint64 `json:"packets"`
	Anomalies uint64 `json:"anomalies"`
}

// PacketMonitor synthesizes packet observations into the event log at
// random intervals. Nothing is captured from a network.
type PacketMonitor struct {
	events    forensic.Appender
	opts      MonitorOptions
	rng       *rand.Rand
	clock     Clock
	logger    *slog.Logger
	packets   atomic.Uint64
	anomalies atomic.Uint64
}

// NewPacketMonitor creates a monitor writing to events. A zero seed seeds from the clock.
func NewPacketMonitor(events forensic.Appender, opts MonitorOptions) *PacketMonitor {
	def := DefaultMonitorOptions()
	if opts.IntervalMin <= 0 {
		opts.IntervalMin = def.IntervalMin
	}
	if opts.IntervalMax <= opts.IntervalMin {
		opts.IntervalMax = opts.IntervalMin + (def.IntervalMax - def.IntervalMin)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.FromContext(context.Background())
	}
	return &PacketMonitor{
		events: events,
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		clock:  opts.Clock,
		logger: opts.Logger,
	}
}

// Run synthesizes observations until ctx is done. It must not be called
// concurrently with itself.
func (m *PacketMonitor) Run(ctx context.Context) error {
	m.logger.Info("packet monitor starting", "interval_min", m.opts.IntervalMin, "interval_max", m.opts.IntervalMax, "anomaly_rate", m.opts.AnomalyRate)
	for {
		if err := m.clock.Sleep(ctx, m.nextInterval()); err != nil {
			m.logger.Info("packet monitor stopped", "packets", m.packets.Load(), "anomalies", m.anomalies.Load())
			return nil
		}
		m.observe()
	}
}

// Stats returns the counts so far.
func (m *PacketMonitor) Stats() MonitorStats {
	return MonitorStats{Packets: m.packets.Load(), Anomalies: m.anomalies.Load()}
}

func (m *PacketMonitor) nextInterval() time.Duration {
	span := int64(m.opts.IntervalMax - m.opts.IntervalMin)
	return m.opts.IntervalMin + time.Duration(m.rng.Int63n(span))
}

func (m *PacketMonitor) observe() {
	id := fmt.Sprintf("Packet-%d", m.rng.Intn(1000)+1)
	m.events.Append(forensic.CategoryPacket, "Captured "+id)
	m.packets.Add(1)
	if m.rng.Float64() < m.opts.AnomalyRate {
		m.events.Append(forensic.CategoryProtocolAlert, "Suspicious packet detected: "+id)
		m.anomalies.Add(1)
	}
}
