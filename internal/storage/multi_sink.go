package storage

import (
	"context"
	"errors"
)

// MultiSink fans records out to multiple sinks. A failing sink does not
// keep the record from the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a new MultiSink. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	mw := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			mw.sinks = append(mw.sinks, s)
		}
	}
	return mw
}

// Len returns the number of wrapped sinks.
func (mw *MultiSink) Len() int { return len(mw.sinks) }

// WriteEvent sends a record to all sinks and joins their errors.
func (mw *MultiSink) WriteEvent(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range mw.sinks {
		if err := s.WriteEvent(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (mw *MultiSink) Close() error {
	var errs []error
	for _, s := range mw.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
