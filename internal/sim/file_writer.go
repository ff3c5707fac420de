package sim

import (
	"encoding/json"
	"os"

	"fleetsim/internal/telemetry"
)

// FileWriter appends telemetry samples to a JSONL file.
type FileWriter struct {
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates a FileWriter writing to path.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteSample appends one sample as a JSON line.
func (w *FileWriter) WriteSample(s telemetry.TelemetrySample) error {
	return w.enc.Encode(s)
}

// WriteSamples appends multiple samples.
func (w *FileWriter) WriteSamples(samples []telemetry.TelemetrySample) error {
	for _, s := range samples {
		if err := w.enc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	return w.file.Close()
}
