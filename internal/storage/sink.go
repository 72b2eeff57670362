// Package storage holds the durable, append-only sinks that forensic events
// are mirrored to. Rows outlive a single run.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is one persisted forensic event.
type Record struct {
	ID        int64     `json:"id,omitempty"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Details   string    `json:"details"`
}

// Sink is a durable append-only store of records.
type Sink interface {
	WriteEvent(ctx context.Context, rec Record) error
	Close() error
}

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("storage: sink closed")

// InitError reports a sink that could not be opened or initialized. It is
// fatal at startup.
type InitError struct {
	Sink string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s sink: %v", e.Sink, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
