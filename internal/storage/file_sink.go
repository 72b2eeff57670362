package storage

import (
	"context"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileSink appends records to a JSONL file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *jsoniter.Encoder
}

// NewFileSink opens path for appending, creating it if needed.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &InitError{Sink: "file", Err: err}
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteEvent logs a single record as one JSON line.
func (f *FileSink) WriteEvent(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return ErrClosed
	}
	return f.enc.Encode(rec)
}

// Close closes the underlying file.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
