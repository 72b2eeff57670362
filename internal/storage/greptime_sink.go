package storage

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

const (
	defaultGreptimePort = 4001
	// DefaultGreptimeTable is the table events are written to when none is named.
	DefaultGreptimeTable = "forensic_events"
)

// greptimeClient is the subset of the ingester client the sink uses.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeSink writes forensic events to GreptimeDB via the ingester client.
// GreptimeDB creates the table on first write.
type GreptimeSink struct {
	client greptimeClient
	table  string
}

// NewGreptimeSink connects to endpoint ("host" or "host:port").
func NewGreptimeSink(endpoint, database, tableName string) (*GreptimeSink, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, &InitError{Sink: "greptime", Err: err}
	}
	if database == "" {
		database = "public"
	}
	if tableName == "" {
		tableName = DefaultGreptimeTable
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, &InitError{Sink: "greptime", Err: err}
	}
	return &GreptimeSink{client: client, table: tableName}, nil
}

// WriteEvent inserts a single record.
func (w *GreptimeSink) WriteEvent(ctx context.Context, rec Record) error {
	return w.writeEvents(ctx, []Record{rec})
}

// writeEvents inserts multiple records in one request.
func (w *GreptimeSink) writeEvents(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	tbl, err := w.newTable()
	if err != nil {
		return err
	}
	for _, r := range recs {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if err := tbl.AddRow(r.RunID, r.EventType, r.Details, ts); err != nil {
			return fmt.Errorf("greptime row: %w", err)
		}
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write: %w", err)
	}
	return nil
}

func (w *GreptimeSink) newTable() (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("run_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("event_type", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("details", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

// Close releases the client connection when the client supports it.
func (w *GreptimeSink) Close() error {
	if c, ok := w.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("empty endpoint")
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("bad port %q: %w", portStr, err)
	}
	return host, port, nil
}
