package main

import (
	"os"

	"greedos/internal/storage"
)

// newSinks opens the durable SQLite sink plus the optional GreptimeDB and
// JSONL sinks. It returns the combined sink and a cleanup closing all of them.
func newSinks(dbPath, logFile string) (storage.Sink, func() error, error) {
	sqlite, err := storage.NewSQLiteSink(dbPath)
	if err != nil {
		return nil, nil, err
	}
	sinks := []storage.Sink{sqlite}

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		gs, err := storage.NewGreptimeSink(endpoint, os.Getenv("GREPTIMEDB_DATABASE"), os.Getenv("GREPTIMEDB_TABLE"))
		if err != nil {
			sqlite.Close()
			return nil, nil, err
		}
		sinks = append(sinks, gs)
	}

	if logFile != "" {
		fs, err := storage.NewFileSink(logFile)
		if err != nil {
			storage.NewMultiSink(sinks...).Close()
			return nil, nil, err
		}
		sinks = append(sinks, fs)
	}

	if len(sinks) == 1 {
		return sqlite, sqlite.Close, nil
	}
	ms := storage.NewMultiSink(sinks...)
	return ms, ms.Close, nil
}
