package sim

import (
	"context"
	"sync"
	"time"

	"greedos/internal/forensic"
)

// virtualClock advances only when slept on.
type virtualClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  int
	onSleep func(n int)
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	n := c.sleeps
	c.mu.Unlock()
	if c.onSleep != nil {
		c.onSleep(n)
	}
	return ctx.Err()
}

// recordingLog collects appended events.
type recordingLog struct {
	mu     sync.Mutex
	events []forensic.Event
}

func (l *recordingLog) Append(c forensic.Category, details string) forensic.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := forensic.Event{Seq: uint64(len(l.events) + 1), Timestamp: time.Now(), Category: c, Details: details}
	l.events = append(l.events, ev)
	return ev
}

func (l *recordingLog) byCategory(c forensic.Category) []forensic.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []forensic.Event
	for _, ev := range l.events {
		if ev.Category == c {
			out = append(out, ev)
		}
	}
	return out
}

func (l *recordingLog) all() []forensic.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]forensic.Event(nil), l.events...)
}

type fixedCounter uint64

func (c *fixedCounter) Value() uint64 { return uint64(*c) }
