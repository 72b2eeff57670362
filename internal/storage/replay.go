package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const maxReplayLine = 1 << 20

// Replay reads JSONL records from r and writes them to sink, preserving
// their relative timing divided by speed. If speed <= 0, no delay is
// inserted. It returns the number of records written.
func Replay(ctx context.Context, r io.Reader, sink Sink, speed float64) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	var prev time.Time
	n := 0
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return n, fmt.Errorf("replay line %d: %w", line, err)
		}
		if !prev.IsZero() && speed > 0 {
			diff := rec.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-ctx.Done():
					t.Stop()
					return n, ctx.Err()
				case <-t.C:
				}
			}
		}
		rec.ID = 0
		if err := sink.WriteEvent(ctx, rec); err != nil {
			return n, err
		}
		n++
		prev = rec.Timestamp
	}
	return n, sc.Err()
}

// ReplayFile opens path and replays its records.
func ReplayFile(ctx context.Context, path string, sink Sink, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Replay(ctx, f, sink, speed)
}
