// Telemetry structs shared by the engine, store, and hub.
package telemetry

import (
	"os"
	"time"
)

// Durable agent status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Agent is the durable identity of one simulated drone. Status and LastSeen
// are the durable projection of live state, written only by the flush path.
type Agent struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Band     string    `json:"band"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// Position holds latitude, longitude, and altitude.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// SimState is the ephemeral kinematic state of one agent. It is owned
// exclusively by the engine's tick goroutine; nothing else may read or
// write it.
type SimState struct {
	Position Position
	SpeedMPS float64
	Heading  float64
	Status   string
	Route    []Position
	Waypoint int
}

// TelemetrySample is one append-only motion sample.
type TelemetrySample struct {
	AgentID    string    `json:"agent_id"`    // TAG
	Lat        float64   `json:"lat"`         // FIELD
	Lon        float64   `json:"lon"`         // FIELD
	Alt        float64   `json:"alt"`         // FIELD
	SpeedMPS   float64   `json:"speed_mps"`   // FIELD
	HeadingDeg float64   `json:"heading_deg"` // FIELD
	Timestamp  time.Time `json:"ts"`          // TIME INDEX
}

// SampleTableName holds the table name used when mirroring samples to
// GreptimeDB. It defaults to "agent_telemetry" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var SampleTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "agent_telemetry"
}()

func (TelemetrySample) TableName() string {
	return SampleTableName
}

// AgentUpdate carries exactly the fields the broadcast and geofence stages
// need for one agent after a tick.
type AgentUpdate struct {
	ID         string  `json:"id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Alt        float64 `json:"alt"`
	SpeedMPS   float64 `json:"speed_mps"`
	HeadingDeg float64 `json:"heading_deg"`
	Status     string  `json:"status"`
}

// FleetStats aggregates durable fleet counts per status and band.
type FleetStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	PerBand  map[string]int `json:"per_band"`
}
