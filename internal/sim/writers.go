package sim

import (
	"time"

	"fleetsim/internal/fence"
	"fleetsim/internal/telemetry"
)

// SampleWriter is an interface to support different telemetry sinks.
type SampleWriter interface {
	WriteSample(telemetry.TelemetrySample) error
}

// Optional: writers can also support batch mode.
type batchSampleWriter interface {
	WriteSamples([]telemetry.TelemetrySample) error
}

// StatusWriter persists durable agent status and last-seen markers.
type StatusWriter interface {
	UpdateAgentStatuses(statuses map[string]string, lastSeen time.Time) error
}

// Broadcaster receives per-tick state for fan-out to live subscribers. The
// engine only hands out copies; a broadcaster must never reach back into
// simulation state.
type Broadcaster interface {
	PushUpdates([]telemetry.AgentUpdate)
	PushZoneActivity([]fence.ZoneActivity)
	PushStats(telemetry.FleetStats)
}

// writeSamples sends a batch through w, using batch mode when supported.
func writeSamples(w SampleWriter, samples []telemetry.TelemetrySample) error {
	if bw, ok := w.(batchSampleWriter); ok {
		return bw.WriteSamples(samples)
	}
	for _, s := range samples {
		if err := w.WriteSample(s); err != nil {
			return err
		}
	}
	return nil
}
