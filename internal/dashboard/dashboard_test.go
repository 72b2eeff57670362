package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"greedos/internal/config"
	"greedos/internal/forensic"
	"greedos/internal/logging"
	"greedos/internal/sim"
)

type stubGenerator struct {
	cfg      config.RunConfig
	requests uint64
	running  bool
}

func (g *stubGenerator) Config() config.RunConfig { return g.cfg }
func (g *stubGenerator) Requests() uint64         { return g.requests }
func (g *stubGenerator) Running() bool            { return g.running }

type stubEvents struct {
	events []forensic.Event
	asked  int
}

func (e *stubEvents) Recent(n int) []forensic.Event {
	e.asked = n
	if n < len(e.events) {
		return e.events[len(e.events)-n:]
	}
	return e.events
}

type stubAlerts struct {
	mu     sync.Mutex
	checks int
	alerts []sim.Alert
}

func (a *stubAlerts) Check() []sim.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks++
	return a.alerts
}

func (a *stubAlerts) Recent(n int) []sim.Alert { return a.alerts }

func (a *stubAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checks
}

type recordingRenderer struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (r *recordingRenderer) Render(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return r.err
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

type stubMonitor struct{}

func (stubMonitor) Stats() sim.MonitorStats { return sim.MonitorStats{Packets: 12, Anomalies: 2} }

func sampleEvents(n int) []forensic.Event {
	out := make([]forensic.Event, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = forensic.Event{Seq: uint64(i + 1), Timestamp: base.Add(time.Duration(i) * time.Second), Category: forensic.CategoryPacket, Details: "Captured Packet-7"}
	}
	return out
}

func TestSnapshotGathersState(t *testing.T) {
	gen := &stubGenerator{cfg: config.RunConfig{Target: "10.0.0.1", Workers: 5, Duration: 30 * time.Second}, requests: 42, running: true}
	events := &stubEvents{events: sampleEvents(8)}
	alerts := &stubAlerts{alerts: []sim.Alert{{Message: "High traffic alert: 101 requests sent!"}}}
	now := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	d := New(gen, events, alerts, &recordingRenderer{}, Options{RunID: "run-1", Monitor: stubMonitor{}, Now: func() time.Time { return now }})

	s := d.Snapshot()
	if s.Target != "10.0.0.1" || s.Workers != 5 || s.Duration != 30*time.Second || s.Requests != 42 || !s.Running {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if events.asked != 5 || len(s.Events) != 5 || s.Events[0].Seq != 4 {
		t.Fatalf("expected the 5 most recent events, got %v", s.Events)
	}
	if s.RunID != "run-1" || !s.TakenAt.Equal(now) || s.Packets != 12 || s.Anomalies != 2 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if alerts.count() != 0 {
		t.Fatalf("Snapshot must not run detection")
	}
}

func TestRunLoopRendersUntilCancelled(t *testing.T) {
	gen := &stubGenerator{cfg: config.RunConfig{Target: "t", Workers: 1, Duration: time.Second}}
	alerts := &stubAlerts{}
	r := &recordingRenderer{err: errors.New("terminal gone")}
	d := New(gen, &stubEvents{}, alerts, r, Options{Interval: 10 * time.Millisecond, Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.RunLoop(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunLoop returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("RunLoop ignored cancellation")
	}
	if r.count() < 3 {
		t.Fatalf("rendered %d times", r.count())
	}
	if alerts.count() != r.count() {
		t.Fatalf("checks %d, renders %d", alerts.count(), r.count())
	}
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRendererTo(&buf, true, false)
	s := Snapshot{Target: "example.org", Workers: 3, Duration: 30 * time.Second, Requests: 7, Events: sampleEvents(1)}
	if err := r.Render(s); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := r.Render(s); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "DDoS simulation") != 1 {
		t.Fatalf("banner should print once:\n%s", out)
	}
	for _, want := range []string{"example.org", "Requests Sent:", "PACKET: Captured Packet-7", "No alerts"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but escapes present")
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRendererTo(&buf)
	if err := r.Render(Snapshot{Target: "x", Requests: 3}); err != nil {
		t.Fatalf("render: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Target != "x" || got.Requests != 3 {
		t.Fatalf("unexpected %+v", got)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected one line per snapshot")
	}
}

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIRendererMessages(t *testing.T) {
	p := &fakeProgram{}
	r := &TUIRenderer{program: p}
	if err := r.Render(Snapshot{Requests: 1}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, ok := p.msgs[0].(snapshotMsg); !ok {
		t.Fatalf("expected snapshotMsg, got %T", p.msgs[0])
	}
	r.SetAdminAddr(":8080")
	if _, ok := p.msgs[1].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[1])
	}
}

func TestTUIModelAppendsOnlyNewEvents(t *testing.T) {
	m := newTUIModel()
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m = mi.(tuiModel)
	events := sampleEvents(3)
	mi, _ = m.Update(snapshotMsg{Snapshot{Events: events}})
	m = mi.(tuiModel)
	mi, _ = m.Update(snapshotMsg{Snapshot{Events: append(events[1:], forensic.Event{Seq: 4, Category: forensic.CategoryTrafficAlert, Details: "High traffic alert: 101 requests sent!"})}})
	m = mi.(tuiModel)
	if len(m.logs) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(m.logs))
	}
	if !strings.Contains(m.logs[3], "High traffic alert") {
		t.Fatalf("unexpected last line %q", m.logs[3])
	}
	if !strings.Contains(m.View(), "Forensic Log") {
		t.Fatalf("view missing log panel")
	}
}

func TestTUIModelToggles(t *testing.T) {
	m := newTUIModel()
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll not toggled")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = mi.(tuiModel)
	if !m.help || !strings.Contains(m.View(), "Key Bindings") {
		t.Fatalf("help view not shown")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	if cmd != nil {
		t.Fatalf("closing help should not quit")
	}
	_, cmd = newTUIModel().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("q should quit")
	}
}
