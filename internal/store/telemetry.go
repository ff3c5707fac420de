package store

import (
	"database/sql"
	"fmt"
	"time"

	"fleetsim/internal/telemetry"
)

// WriteSamples appends a batch of telemetry samples in one transaction.
func (s *Store) WriteSamples(samples []telemetry.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO telemetry
			(agent_id, lat, lon, alt, speed_mps, heading_deg, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range samples {
			if _, err := stmt.Exec(r.AgentID, r.Lat, r.Lon, r.Alt, r.SpeedMPS, r.HeadingDeg, toMillis(r.Timestamp)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSample appends a single sample.
func (s *Store) WriteSample(sample telemetry.TelemetrySample) error {
	return s.WriteSamples([]telemetry.TelemetrySample{sample})
}

// Trajectory returns an agent's samples since the given time, oldest first.
// An unknown agent yields an empty result, not an error.
func (s *Store) Trajectory(agentID string, since time.Time) ([]telemetry.TelemetrySample, error) {
	rows, err := s.db.Query(`SELECT agent_id, lat, lon, alt, speed_mps, heading_deg, ts
		FROM telemetry WHERE agent_id = ? AND ts >= ? ORDER BY ts ASC`,
		agentID, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("trajectory: %w", err)
	}
	defer rows.Close()

	var samples []telemetry.TelemetrySample
	for rows.Next() {
		var r telemetry.TelemetrySample
		var ts int64
		if err := rows.Scan(&r.AgentID, &r.Lat, &r.Lon, &r.Alt, &r.SpeedMPS, &r.HeadingDeg, &ts); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		r.Timestamp = fromMillis(ts)
		samples = append(samples, r)
	}
	return samples, rows.Err()
}

// AgentSnapshot is one agent joined with its most recent telemetry sample.
// Agents that never flushed a sample carry zero kinematics.
type AgentSnapshot struct {
	Agent      telemetry.Agent `json:"agent"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	Alt        float64         `json:"alt"`
	SpeedMPS   float64         `json:"speed_mps"`
	HeadingDeg float64         `json:"heading_deg"`
	SampledAt  time.Time       `json:"sampled_at"`
}

// LastKnownPositions returns the latest stored sample per agent, joined with
// the agent row. This backs the hub's initial snapshot.
func (s *Store) LastKnownPositions() ([]AgentSnapshot, error) {
	rows, err := s.db.Query(`SELECT a.id, a.name, a.band, a.status, a.last_seen,
			t.lat, t.lon, t.alt, t.speed_mps, t.heading_deg, t.ts
		FROM agents a
		LEFT JOIN telemetry t ON t.id = (
			SELECT id FROM telemetry WHERE agent_id = a.id ORDER BY ts DESC, id DESC LIMIT 1
		)
		ORDER BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("last known positions: %w", err)
	}
	defer rows.Close()

	var snaps []AgentSnapshot
	for rows.Next() {
		var snap AgentSnapshot
		var lastSeen, ts sql.NullInt64
		var lat, lon, alt, speed, heading sql.NullFloat64
		if err := rows.Scan(&snap.Agent.ID, &snap.Agent.Name, &snap.Agent.Band, &snap.Agent.Status,
			&lastSeen, &lat, &lon, &alt, &speed, &heading, &ts); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if lastSeen.Valid {
			snap.Agent.LastSeen = fromMillis(lastSeen.Int64)
		}
		if lat.Valid {
			snap.Lat, snap.Lon, snap.Alt = lat.Float64, lon.Float64, alt.Float64
			snap.SpeedMPS, snap.HeadingDeg = speed.Float64, heading.Float64
			snap.SampledAt = fromMillis(ts.Int64)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
