package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"fleetsim/internal/config"
	"fleetsim/internal/fence"
)

// SeedZones inserts configured zones that are not present yet, keyed by name.
// Existing zones are left untouched; the engine treats them as immutable.
func (s *Store) SeedZones(zones []config.Zone) error {
	return s.transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO zones (id, name, center_lat, center_lon, radius_m)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, z := range zones {
			if _, err := stmt.Exec(uuid.New().String(), z.Name, z.CenterLat, z.CenterLon, z.RadiusM); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListZones returns all zones ordered by ID.
func (s *Store) ListZones() ([]fence.Zone, error) {
	rows, err := s.db.Query(`SELECT id, name, center_lat, center_lon, radius_m FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var zones []fence.Zone
	for rows.Next() {
		var z fence.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.CenterLat, &z.CenterLon, &z.RadiusM); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
