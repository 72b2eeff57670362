package sim

import "sync/atomic"

// CounterReader exposes a read-only snapshot of a request counter.
type CounterReader interface {
	Value() uint64
}

// RequestCounter is a monotonically non-decreasing request count.
type RequestCounter struct {
	n atomic.Uint64
}

// Inc adds one and returns the new value.
func (c *RequestCounter) Inc() uint64 { return c.n.Add(1) }

// Value returns the current count.
func (c *RequestCounter) Value() uint64 { return c.n.Load() }
