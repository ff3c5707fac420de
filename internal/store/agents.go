package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetsim/internal/telemetry"
)

// AgentCount returns the number of provisioned agents.
func (s *Store) AgentCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM agents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return n, nil
}

// ProvisionAgents inserts size agents named from prefix, cycling through the
// given communication bands. It is a no-op when agents already exist so a
// restart never re-provisions the fleet.
func (s *Store) ProvisionAgents(prefix string, size int, bands []string) error {
	n, err := s.AgentCount()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if len(bands) == 0 {
		bands = []string{"default"}
	}
	return s.transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO agents (id, name, band, status) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := 0; i < size; i++ {
			id := uuid.New().String()
			name := fmt.Sprintf("%s-%02d", prefix, i+1)
			band := bands[i%len(bands)]
			if _, err := stmt.Exec(id, name, band, telemetry.StatusInactive); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAgents returns agents filtered by status and band; empty filter values
// match everything.
func (s *Store) ListAgents(status, band string) ([]telemetry.Agent, error) {
	query := `SELECT id, name, band, status, last_seen FROM agents`
	var conditions []string
	var args []any
	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if band != "" {
		conditions = append(conditions, "band = ?")
		args = append(args, band)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []telemetry.Agent
	for rows.Next() {
		var a telemetry.Agent
		var lastSeen sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Name, &a.Band, &a.Status, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		if lastSeen.Valid {
			a.LastSeen = fromMillis(lastSeen.Int64)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// UpdateAgentStatuses writes the durable status and last-seen marker for each
// agent in one transaction.
func (s *Store) UpdateAgentStatuses(statuses map[string]string, lastSeen time.Time) error {
	if len(statuses) == 0 {
		return nil
	}
	return s.transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE agents SET status = ?, last_seen = ? WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		ts := toMillis(lastSeen)
		for id, status := range statuses {
			if _, err := stmt.Exec(status, ts, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// FleetStats aggregates durable agent counts.
func (s *Store) FleetStats() (telemetry.FleetStats, error) {
	stats := telemetry.FleetStats{PerBand: map[string]int{}}

	rows, err := s.db.Query(`SELECT band, status, COUNT(*) FROM agents GROUP BY band, status`)
	if err != nil {
		return stats, fmt.Errorf("fleet stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var band, status string
		var n int
		if err := rows.Scan(&band, &status, &n); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += n
		stats.PerBand[band] += n
		if status == telemetry.StatusActive {
			stats.Active += n
		} else {
			stats.Inactive += n
		}
	}
	return stats, rows.Err()
}
