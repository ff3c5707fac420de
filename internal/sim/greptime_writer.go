package sim

import (
	"context"
	"fmt"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"

	"fleetsim/internal/telemetry"
)

// greptimeClient abstracts the ingester client for testing.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeWriter mirrors telemetry samples to GreptimeDB. The table is
// auto-created by the server on first ingest.
type GreptimeWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeWriter connects to a GreptimeDB endpoint and returns a writer.
func NewGreptimeWriter(host, database string) (*GreptimeWriter, error) {
	cfg := greptime.NewConfig(host).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeWriter{client: client, table: telemetry.SampleTableName}, nil
}

// WriteSample mirrors a single sample.
func (w *GreptimeWriter) WriteSample(s telemetry.TelemetrySample) error {
	return w.WriteSamples([]telemetry.TelemetrySample{s})
}

// WriteSamples mirrors a batch of samples in one ingest call.
func (w *GreptimeWriter) WriteSamples(samples []telemetry.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}

	tbl, err := table.New(w.table)
	if err != nil {
		return fmt.Errorf("greptime table: %w", err)
	}
	if err := tbl.AddTagColumn("agent_id", types.STRING); err != nil {
		return err
	}
	for _, col := range []string{"lat", "lon", "alt", "speed_mps", "heading_deg"} {
		if err := tbl.AddFieldColumn(col, types.FLOAT64); err != nil {
			return err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, s := range samples {
		if err := tbl.AddRow(s.AgentID, s.Lat, s.Lon, s.Alt, s.SpeedMPS, s.HeadingDeg, s.Timestamp); err != nil {
			return fmt.Errorf("greptime row: %w", err)
		}
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		return fmt.Errorf("greptime write: %w", err)
	}
	return nil
}
