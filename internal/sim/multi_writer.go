package sim

import "fleetsim/internal/telemetry"

// MultiWriter fans telemetry samples out to multiple writers.
type MultiWriter struct {
	writers []SampleWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...SampleWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// WriteSample sends a sample to all writers.
func (mw *MultiWriter) WriteSample(s telemetry.TelemetrySample) error {
	for _, w := range mw.writers {
		if err := w.WriteSample(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteSamples sends a batch to all writers, using batch mode if supported.
func (mw *MultiWriter) WriteSamples(samples []telemetry.TelemetrySample) error {
	for _, w := range mw.writers {
		if err := writeSamples(w, samples); err != nil {
			return err
		}
	}
	return nil
}
