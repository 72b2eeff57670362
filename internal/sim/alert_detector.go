package sim

import (
	"fmt"
	"sync"
	"time"

	"greedos/internal/config"
	"greedos/internal/forensic"
	"greedos/internal/metrics"
)

// DefaultAlertThreshold is the request count above which traffic alerts fire.
const DefaultAlertThreshold = 100

// AlertMode selects how repeated breaches are deduplicated.
type AlertMode string

const (
	// AlertModeValue fires once per distinct message. The message embeds the
	// live counter, so every check that sees a new count above threshold fires.
	AlertModeValue AlertMode = config.AlertModeValue
	// AlertModeEdge fires once per crossing from at-or-below to above threshold.
	AlertModeEdge AlertMode = config.AlertModeEdge
)

// Alert is a fired traffic alert.
type Alert struct {
	Message    string    `json:"message"`
	DetectedAt time.Time `json:"detected_at"`
	Requests   uint64    `json:"requests"`
}

// AlertRegistry is an insertion-ordered set of alerts keyed by message.
type AlertRegistry struct {
	order []Alert
	seen  map[string]struct{}
}

// Add inserts a unless an alert with the same message exists. It reports
// whether a was inserted.
func (r *AlertRegistry) Add(a Alert) bool {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[a.Message]; ok {
		return false
	}
	r.seen[a.Message] = struct{}{}
	r.order = append(r.order, a)
	return true
}

// Len returns the number of alerts.
func (r *AlertRegistry) Len() int { return len(r.order) }

// All returns a copy of the alerts in insertion order.
func (r *AlertRegistry) All() []Alert {
	if len(r.order) == 0 {
		return nil
	}
	out := make([]Alert, len(r.order))
	copy(out, r.order)
	return out
}

// AlertDetector compares the request counter to a threshold and emits
// deduplicated TRAFFIC_ALERT events.
type AlertDetector struct {
	counter   CounterReader
	events    forensic.Appender
	threshold uint64
	mode      AlertMode
	now       func() time.Time

	mu       sync.Mutex
	registry AlertRegistry
	latched  bool
}

// NewAlertDetector creates a detector. An unknown mode falls back to AlertModeValue.
func NewAlertDetector(counter CounterReader, events forensic.Appender, threshold uint64, mode AlertMode) *AlertDetector {
	if mode != AlertModeEdge {
		mode = AlertModeValue
	}
	return &AlertDetector{
		counter:   counter,
		events:    events,
		threshold: threshold,
		mode:      mode,
		now:       time.Now,
	}
}

// Threshold returns the configured threshold.
func (d *AlertDetector) Threshold() uint64 { return d.threshold }

// Mode returns the deduplication mode.
func (d *AlertDetector) Mode() AlertMode { return d.mode }

// Check snapshots the counter, fires an alert if warranted, and returns
// every alert fired so far.
func (d *AlertDetector) Check() []Alert {
	value := d.counter.Value()

	d.mu.Lock()
	defer d.mu.Unlock()
	if value <= d.threshold {
		d.latched = false
		return d.registry.All()
	}
	if d.mode == AlertModeEdge && d.latched {
		return d.registry.All()
	}
	d.latched = true

	msg := fmt.Sprintf("High traffic alert: %d requests sent!", value)
	if d.registry.Add(Alert{Message: msg, DetectedAt: d.now(), Requests: value}) {
		d.events.Append(forensic.CategoryTrafficAlert, msg)
		metrics.AlertsFired.Inc()
	}
	return d.registry.All()
}

// Alerts returns every alert fired so far.
func (d *AlertDetector) Alerts() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.All()
}

// Recent returns the last n alerts, oldest first.
func (d *AlertDetector) Recent(n int) []Alert {
	if n <= 0 {
		return nil
	}
	all := d.Alerts()
	if n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}
