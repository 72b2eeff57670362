package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSinkWriteAndRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")
	sink, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer sink.Close()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []string{"SIMULATION", "PACKET", "TRAFFIC_ALERT"} {
		err := sink.WriteEvent(ctx, Record{
			RunID:     "run-1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			EventType: typ,
			Details:   typ + " details",
		})
		require.NoError(t, err)
	}

	n, err := sink.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	recent, err := sink.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "PACKET", recent[0].EventType)
	assert.Equal(t, "TRAFFIC_ALERT", recent[1].EventType)
	assert.True(t, recent[0].ID < recent[1].ID, "ids must increase")
	assert.True(t, recent[1].Timestamp.Equal(base.Add(2*time.Second)))
	assert.Equal(t, "run-1", recent[1].RunID)
}

func TestSQLiteSinkPersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "events.db")

	first, err := NewSQLiteSink(path)
	require.NoError(t, err)
	require.NoError(t, first.WriteEvent(ctx, Record{EventType: "PACKET", Details: "Captured Packet-1"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.WriteEvent(ctx, Record{EventType: "PACKET", Details: "Captured Packet-2"}))

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLiteSinkInitError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewSQLiteSink(filepath.Join(blocker, "events.db"))
	var initErr *InitError
	require.True(t, errors.As(err, &initErr), "expected InitError, got %v", err)
	assert.Equal(t, "sqlite", initErr.Sink)
}

func TestSQLiteSinkWriteAfterClose(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.WriteEvent(context.Background(), Record{EventType: "PACKET"}), ErrClosed)
}
