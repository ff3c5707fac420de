package sim

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"fleetsim/internal/telemetry"
)

func sampleFixture() telemetry.TelemetrySample {
	return telemetry.TelemetrySample{
		AgentID:    "a1",
		Lat:        48.2,
		Lon:        16.3,
		Alt:        120,
		SpeedMPS:   22,
		HeadingDeg: 180,
		Timestamp:  time.Unix(0, 0).UTC(),
	}
}

func TestFileWriterAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}

	s := sampleFixture()
	if err := fw.WriteSample(s); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := fw.WriteSamples([]telemetry.TelemetrySample{s, s}); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	fw.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var got telemetry.TelemetrySample
		if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
			t.Fatalf("decode line %d: %v", lines, err)
		}
		if got.AgentID != s.AgentID || got.SpeedMPS != s.SpeedMPS {
			t.Fatalf("unexpected sample: %#v", got)
		}
		lines++
	}
	if lines != 3 {
		t.Fatalf("exported lines = %d, want 3", lines)
	}
}

func TestStdoutWriterEmitsOneLinePerSample(t *testing.T) {
	var buf bytes.Buffer
	w := &StdoutWriter{out: &buf}

	s := sampleFixture()
	if err := w.WriteSamples([]telemetry.TelemetrySample{s, s}); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	out := strings.TrimRight(buf.String(), "\n")
	if got := len(strings.Split(out, "\n")); got != 2 {
		t.Fatalf("output lines = %d, want 2", got)
	}
}

func TestMultiWriterFansOut(t *testing.T) {
	a := &mockSampleWriter{}
	b := &mockSampleWriter{}
	mw := NewMultiWriter(a, b)

	batch := []telemetry.TelemetrySample{sampleFixture(), sampleFixture()}
	if err := mw.WriteSamples(batch); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if len(a.batches) != 1 || len(b.batches) != 1 {
		t.Fatalf("fan-out batches: a=%d b=%d, want 1 each", len(a.batches), len(b.batches))
	}
	if len(a.batches[0]) != 2 {
		t.Fatalf("batch size = %d, want 2", len(a.batches[0]))
	}
}

// perSampleWriter has no batch mode, forcing the per-sample fallback.
type perSampleWriter struct {
	samples []telemetry.TelemetrySample
}

func (p *perSampleWriter) WriteSample(s telemetry.TelemetrySample) error {
	p.samples = append(p.samples, s)
	return nil
}

func TestWriteSamplesFallsBackPerSample(t *testing.T) {
	p := &perSampleWriter{}
	batch := []telemetry.TelemetrySample{sampleFixture(), sampleFixture(), sampleFixture()}
	if err := writeSamples(p, batch); err != nil {
		t.Fatalf("writeSamples: %v", err)
	}
	if len(p.samples) != 3 {
		t.Fatalf("fallback wrote %d samples, want 3", len(p.samples))
	}
}

type mockGreptimeClient struct {
	table *table.Table
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, nil
}

func TestGreptimeWriterSchemaAndRows(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeWriter{client: m, table: "agent_telemetry"}

	s := sampleFixture()
	if err := w.WriteSamples([]telemetry.TelemetrySample{s, s}); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if m.table == nil {
		t.Fatal("expected table to be captured")
	}

	schema := m.table.GetRows().Schema
	if len(schema) != 7 {
		t.Fatalf("schema length = %d, want 7", len(schema))
	}
	if schema[0].Datatype != gpb.ColumnDataType_STRING {
		t.Fatalf("agent_id column type = %v, want STRING", schema[0].Datatype)
	}
	if schema[6].Datatype != gpb.ColumnDataType_TIMESTAMP_MILLISECOND {
		t.Fatalf("ts column type = %v, want TIMESTAMP_MILLISECOND", schema[6].Datatype)
	}

	rows := m.table.GetRows().Rows
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[0].Values[0].GetStringValue(); got != "a1" {
		t.Fatalf("agent_id = %s, want a1", got)
	}
}

func TestGreptimeWriterSkipsEmptyBatch(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeWriter{client: m, table: "agent_telemetry"}

	if err := w.WriteSamples(nil); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if m.table != nil {
		t.Fatal("empty batch must not reach the client")
	}
}

func TestReplaySamplesPreservesOrder(t *testing.T) {
	base := time.Unix(0, 0).UTC()
	samples := []telemetry.TelemetrySample{
		{AgentID: "a1", Timestamp: base},
		{AgentID: "a1", Timestamp: base.Add(time.Second)},
		{AgentID: "a1", Timestamp: base.Add(2 * time.Second)},
	}

	p := &perSampleWriter{}
	if err := ReplaySamples(samples, p, 0); err != nil {
		t.Fatalf("ReplaySamples: %v", err)
	}
	if len(p.samples) != 3 {
		t.Fatalf("replayed %d samples, want 3", len(p.samples))
	}
	for i := range p.samples {
		if !p.samples[i].Timestamp.Equal(samples[i].Timestamp) {
			t.Fatalf("sample %d out of order", i)
		}
	}
}

func TestReplayLogFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	base := time.Unix(0, 0).UTC()
	for i := 0; i < 4; i++ {
		s := sampleFixture()
		s.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := fw.WriteSample(s); err != nil {
			t.Fatalf("WriteSample: %v", err)
		}
	}
	fw.Close()

	p := &perSampleWriter{}
	if err := ReplayLogFile(path, p, 0); err != nil {
		t.Fatalf("ReplayLogFile: %v", err)
	}
	if len(p.samples) != 4 {
		t.Fatalf("replayed %d samples, want 4", len(p.samples))
	}
}
