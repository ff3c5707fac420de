// Writer implementation printing samples to STDOUT
package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fleetsim/internal/telemetry"
)

// StdoutWriter prints telemetry samples as JSON lines.
type StdoutWriter struct {
	out io.Writer
}

// NewStdoutWriter creates a StdoutWriter writing to os.Stdout.
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{out: os.Stdout}
}

// WriteSample outputs a single sample.
func (w *StdoutWriter) WriteSample(s telemetry.TelemetrySample) error {
	data, _ := json.Marshal(s)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteSamples outputs multiple samples.
func (w *StdoutWriter) WriteSamples(samples []telemetry.TelemetrySample) error {
	for _, s := range samples {
		_ = w.WriteSample(s)
	}
	return nil
}
