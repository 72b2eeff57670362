package forensic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"greedos/internal/logging"
	"greedos/internal/storage"
)

type memSink struct {
	mu   sync.Mutex
	recs []storage.Record
	fail func(storage.Record) error
	gate chan struct{}
}

func (s *memSink) WriteEvent(_ context.Context, rec storage.Record) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.fail != nil {
		if err := s.fail(rec); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) records() []storage.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Record(nil), s.recs...)
}

func TestEventLogEvictsOldest(t *testing.T) {
	const capacity = 5
	l := NewEventLog(Options{Capacity: capacity, Logger: logging.Discard()})
	defer l.Close()

	for i := 1; i <= capacity+1; i++ {
		l.Append(CategoryPacket, fmt.Sprintf("e%d", i))
	}
	if l.Len() != capacity {
		t.Fatalf("len = %d, want %d", l.Len(), capacity)
	}
	got := l.Recent(capacity)
	for i, ev := range got {
		want := fmt.Sprintf("e%d", i+2)
		if ev.Details != want {
			t.Fatalf("recent[%d] = %s, want %s", i, ev.Details, want)
		}
	}
}

func TestEventLogRecentWindow(t *testing.T) {
	l := NewEventLog(Options{Capacity: 10, Logger: logging.Discard()})
	defer l.Close()

	if got := l.Recent(5); len(got) != 0 {
		t.Fatalf("expected empty log, got %d", len(got))
	}
	for i := 1; i <= 3; i++ {
		l.Append(CategorySimulation, fmt.Sprintf("e%d", i))
	}

	cases := []struct {
		n     int
		first string
		count int
	}{
		{n: 0, count: 0},
		{n: 2, first: "e2", count: 2},
		{n: 3, first: "e1", count: 3},
		{n: 50, first: "e1", count: 3},
	}
	for _, tc := range cases {
		got := l.Recent(tc.n)
		if len(got) != tc.count {
			t.Fatalf("Recent(%d) returned %d events, want %d", tc.n, len(got), tc.count)
		}
		if tc.count > 0 && got[0].Details != tc.first {
			t.Fatalf("Recent(%d)[0] = %s, want %s", tc.n, got[0].Details, tc.first)
		}
	}
	if l.Len() != 3 {
		t.Fatalf("Recent mutated the log: len = %d", l.Len())
	}
}

func TestEventLogConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		each      = 200
		capacity  = 50
	)
	l := NewEventLog(Options{Capacity: capacity, Logger: logging.Discard()})
	defer l.Close()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			evs := l.Recent(capacity)
			if len(evs) > capacity {
				t.Errorf("observed %d events, capacity %d", len(evs), capacity)
				return
			}
			for i := 1; i < len(evs); i++ {
				if evs[i].Seq <= evs[i-1].Seq || evs[i].Timestamp.Before(evs[i-1].Timestamp) {
					t.Errorf("out of order: %+v then %+v", evs[i-1], evs[i])
					return
				}
			}
		}
	}()

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				l.Append(CategoryPacket, fmt.Sprintf("p%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()
	close(stop)
	<-readerDone

	evs := l.Recent(capacity)
	if len(evs) != capacity {
		t.Fatalf("len = %d, want %d", len(evs), capacity)
	}
	if last := evs[len(evs)-1].Seq; last != producers*each {
		t.Fatalf("last seq = %d, want %d", last, producers*each)
	}
}

func TestEventLogTimestampsNeverDecrease(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second), base.Add(3 * time.Second)}
	i := 0
	now := func() time.Time {
		ts := clock[i]
		i++
		return ts
	}
	l := NewEventLog(Options{Capacity: 10, Now: now, Logger: logging.Discard()})
	defer l.Close()
	for range clock {
		l.Append(CategoryPacket, "x")
	}
	evs := l.Recent(10)
	want := []time.Time{base.Add(2 * time.Second), base.Add(2 * time.Second), base.Add(2 * time.Second), base.Add(3 * time.Second)}
	for i, ev := range evs {
		if !ev.Timestamp.Equal(want[i]) {
			t.Fatalf("event %d timestamp = %s, want %s", i, ev.Timestamp, want[i])
		}
	}
}

func TestEventLogMirrorsInOrder(t *testing.T) {
	sink := &memSink{}
	l := NewEventLog(Options{Capacity: 3, Sink: sink, RunID: "run-7", Logger: logging.Discard()})
	for i := 0; i < 10; i++ {
		l.Append(CategoryPacket, fmt.Sprintf("e%d", i))
	}
	l.Close()

	recs := sink.records()
	if len(recs) != 10 {
		t.Fatalf("sink got %d records, want 10", len(recs))
	}
	for i, r := range recs {
		if r.Details != fmt.Sprintf("e%d", i) || r.RunID != "run-7" || r.EventType != "PACKET" {
			t.Fatalf("record %d = %+v", i, r)
		}
	}
	if st := l.MirrorStats(); st.Written != 10 || st.Failed != 0 || st.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestEventLogSinkFailureDoesNotAffectLog(t *testing.T) {
	sink := &memSink{fail: func(r storage.Record) error {
		if r.Details == "e1" {
			return errors.New("disk full")
		}
		if r.Details == "e2" {
			panic("driver bug")
		}
		return nil
	}}
	l := NewEventLog(Options{Capacity: 10, Sink: sink, Logger: logging.Discard()})
	for i := 0; i < 4; i++ {
		l.Append(CategoryPacket, fmt.Sprintf("e%d", i))
	}
	l.Close()

	if l.Len() != 4 {
		t.Fatalf("in-memory log lost events: len = %d", l.Len())
	}
	st := l.MirrorStats()
	if st.Written != 2 || st.Failed != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if got := len(sink.records()); got != 2 {
		t.Fatalf("sink stored %d records, want 2", got)
	}
}

func TestEventLogDropsWhenMirrorQueueFull(t *testing.T) {
	sink := &memSink{gate: make(chan struct{})}
	l := NewEventLog(Options{Capacity: 10, Sink: sink, MirrorBuffer: 1, Logger: logging.Discard()})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			l.Append(CategoryPacket, fmt.Sprintf("e%d", i))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Append blocked on a stalled sink")
	}
	close(sink.gate)
	l.Close()

	st := l.MirrorStats()
	if st.Written+st.Dropped != 5 || st.Dropped == 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if l.Len() != 5 {
		t.Fatalf("len = %d, want 5", l.Len())
	}
}

func TestEventLogCloseIdempotent(t *testing.T) {
	l := NewEventLog(Options{Sink: &memSink{}, Logger: logging.Discard()})
	l.Close()
	l.Close()
	l.Append(CategoryPacket, "after close")
	if l.Len() != 1 {
		t.Fatalf("append after close should still land in memory")
	}
}
