package forensic

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"greedos/internal/logging"
	"greedos/internal/metrics"
	"greedos/internal/storage"
)

const (
	// DefaultCapacity is the number of events kept in memory.
	DefaultCapacity     = 50
	defaultMirrorBuffer = 256
	mirrorWriteTimeout  = 5 * time.Second
)

// Options configures an EventLog.
type Options struct {
	Capacity int
	// Sink receives a copy of every appended event. Nil disables mirroring.
	Sink         storage.Sink
	RunID        string
	MirrorBuffer int
	Logger       *slog.Logger
	Now          func() time.Time
}

// MirrorStats accounts for every mirror write attempted by the log.
type MirrorStats struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// EventLog is a fixed-capacity ring of events. Append and Recent are safe
// for concurrent use; the oldest event is evicted when the ring is full.
type EventLog struct {
	mu    sync.Mutex
	buf   []Event
	start int
	n     int
	seq   uint64
	last  time.Time
	now   func() time.Time

	sink         storage.Sink
	runID        string
	mirror       chan storage.Record
	mirrorClosed bool
	done         chan struct{}
	closeOnce    sync.Once

	logger  *slog.Logger
	warn    rate.Sometimes
	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewEventLog creates an event log. When opts.Sink is set a background
// goroutine mirrors events to it until Close is called.
func NewEventLog(opts Options) *EventLog {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MirrorBuffer <= 0 {
		opts.MirrorBuffer = defaultMirrorBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.FromContext(context.Background())
	}
	l := &EventLog{
		buf:    make([]Event, opts.Capacity),
		now:    opts.Now,
		sink:   opts.Sink,
		runID:  opts.RunID,
		logger: opts.Logger,
		warn:   rate.Sometimes{First: 3, Interval: 10 * time.Second},
		done:   make(chan struct{}),
	}
	if l.sink != nil {
		l.mirror = make(chan storage.Record, opts.MirrorBuffer)
		go l.runMirror()
	} else {
		close(l.done)
	}
	return l
}

// Append records an event. The timestamp is taken under the lock that
// orders insertion, so timestamps never decrease in log order.
func (l *EventLog) Append(category Category, details string) Event {
	l.mu.Lock()
	ts := l.now()
	if ts.Before(l.last) {
		ts = l.last
	}
	l.last = ts
	l.seq++
	ev := Event{Seq: l.seq, Timestamp: ts, Category: category, Details: details}

	size := len(l.buf)
	if l.n < size {
		l.buf[(l.start+l.n)%size] = ev
		l.n++
	} else {
		l.buf[l.start] = ev
		l.start = (l.start + 1) % size
	}

	// enqueue under the lock so the sink sees log order
	if l.mirror != nil && !l.mirrorClosed {
		select {
		case l.mirror <- l.record(ev):
		default:
			l.dropped.Add(1)
			metrics.SinkWrites.WithLabelValues(metrics.ResultDropped).Inc()
		}
	}
	l.mu.Unlock()

	metrics.EventsAppended.WithLabelValues(string(category)).Inc()
	return ev
}

// Recent returns the last min(n, Len()) events, oldest first.
func (l *EventLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > l.n {
		n = l.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	size := len(l.buf)
	first := l.start + l.n - n
	for i := 0; i < n; i++ {
		out[i] = l.buf[(first+i)%size]
	}
	return out
}

// Len returns the number of events currently held.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Cap returns the log capacity.
func (l *EventLog) Cap() int { return len(l.buf) }

// MirrorStats returns the mirror write accounting so far.
func (l *EventLog) MirrorStats() MirrorStats {
	return MirrorStats{
		Written: l.written.Load(),
		Failed:  l.failed.Load(),
		Dropped: l.dropped.Load(),
	}
}

// Close stops mirroring and waits for queued events to reach the sink.
// Appends after Close still land in memory. The sink itself is not closed.
func (l *EventLog) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		if l.mirror != nil {
			l.mirrorClosed = true
			close(l.mirror)
		}
		l.mu.Unlock()
	})
	<-l.done
}

func (l *EventLog) record(ev Event) storage.Record {
	return storage.Record{
		RunID:     l.runID,
		Timestamp: ev.Timestamp,
		EventType: string(ev.Category),
		Details:   ev.Details,
	}
}

func (l *EventLog) runMirror() {
	defer close(l.done)
	for rec := range l.mirror {
		l.writeOne(rec)
	}
}

func (l *EventLog) writeOne(rec storage.Record) {
	defer func() {
		if r := recover(); r != nil {
			l.failed.Add(1)
			metrics.SinkWrites.WithLabelValues(metrics.ResultFailed).Inc()
			l.logger.Error("event sink panicked", "event_type", rec.EventType, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()
	if err := l.sink.WriteEvent(ctx, rec); err != nil {
		l.failed.Add(1)
		metrics.SinkWrites.WithLabelValues(metrics.ResultFailed).Inc()
		l.warn.Do(func() {
			l.logger.Warn("event sink write failed", "event_type", rec.EventType, "err", err)
		})
		return
	}
	l.written.Add(1)
	metrics.SinkWrites.WithLabelValues(metrics.ResultWritten).Inc()
}
