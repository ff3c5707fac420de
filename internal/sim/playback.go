package sim

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"fleetsim/internal/telemetry"
)

// ReplaySamples replays stored samples through writer, preserving the
// original inter-sample gaps scaled by speed. If speed <= 0, no artificial
// delay is inserted.
func ReplaySamples(samples []telemetry.TelemetrySample, writer SampleWriter, speed float64) error {
	var prev time.Time
	for _, s := range samples {
		if !prev.IsZero() && speed > 0 {
			diff := s.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		if err := writer.WriteSample(s); err != nil {
			return err
		}
		prev = s.Timestamp
	}
	return nil
}

// ReplayLog replays JSONL samples from r through writer at the given speed.
func ReplayLog(r io.Reader, writer SampleWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for {
		var s telemetry.TelemetrySample
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !prev.IsZero() && speed > 0 {
			diff := s.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				time.Sleep(diff)
			}
		}
		if err := writer.WriteSample(s); err != nil {
			return err
		}
		prev = s.Timestamp
	}
}

// ReplayLogFile opens a JSONL export and replays its samples.
func ReplayLogFile(path string, writer SampleWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(f, writer, speed)
}
