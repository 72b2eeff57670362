package sim

import (
	"context"
	"math/rand"
	"time"
)

// Clock abstracts time for simulation tasks so runs can be replayed
// deterministically in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter describes a sleep interval drawn uniformly from [Base, Base+Spread).
type Jitter struct {
	Base   time.Duration
	Spread time.Duration
}

// DefaultJitter is the per-request pause of a load worker.
var DefaultJitter = Jitter{Base: 50 * time.Millisecond, Spread: 100 * time.Millisecond}

// Draw returns the next interval from r.
func (j Jitter) Draw(r *rand.Rand) time.Duration {
	if j.Spread <= 0 {
		return j.Base
	}
	return j.Base + time.Duration(r.Int63n(int64(j.Spread)))
}

// Max returns the exclusive upper bound of the interval.
func (j Jitter) Max() time.Duration { return j.Base + j.Spread }
