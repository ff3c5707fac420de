// Package fence evaluates circular geofence membership per tick.
package fence

import (
	"sort"

	"fleetsim/internal/geo"
	"fleetsim/internal/telemetry"
)

// Zone is one circular geofence. Zones are loaded once at startup and treated
// as immutable for the lifetime of the engine.
type Zone struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	RadiusM   float64 `json:"radius_m"`
}

// ZoneActivity reports how many active agents are currently inside one zone.
// Zones with no agents inside are omitted from the emitted summary.
type ZoneActivity struct {
	ZoneID   string `json:"zone_id"`
	ZoneName string `json:"zone_name"`
	Count    int    `json:"count"`
}

// Contains reports whether the position lies within the zone. Membership uses
// the great-circle distance to the zone center; a point exactly on the radius
// counts as inside.
func (z Zone) Contains(lat, lon float64) bool {
	return geo.Distance(lat, lon, z.CenterLat, z.CenterLon) <= z.RadiusM
}

// Evaluate counts active agents inside each zone. The result contains only
// zones with a non-zero count and is ordered by zone ID so repeated
// evaluations of the same state serialize identically.
func Evaluate(zones []Zone, updates []telemetry.AgentUpdate) []ZoneActivity {
	var out []ZoneActivity
	for _, z := range zones {
		count := 0
		for _, u := range updates {
			if u.Status != telemetry.StatusActive {
				continue
			}
			if z.Contains(u.Lat, u.Lon) {
				count++
			}
		}
		if count > 0 {
			out = append(out, ZoneActivity{ZoneID: z.ID, ZoneName: z.Name, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out
}
