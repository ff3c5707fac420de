package route

import (
	"math/rand"
	"testing"

	"fleetsim/internal/geo"
	"fleetsim/internal/telemetry"
)

var center = telemetry.Position{Lat: 48.2082, Lon: 16.3738}

func TestGenerateNeverEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, p := range Patterns() {
		for i := 0; i < 50; i++ {
			wps := Generate(p, center, 1500, rng)
			if len(wps) == 0 {
				t.Fatalf("pattern %s returned empty route", p)
			}
			if len(wps) < 2 {
				t.Errorf("pattern %s returned %d waypoints, want at least 2", p, len(wps))
			}
		}
	}
}

func TestGenerateStaysNearCenter(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	extent := 1500.0
	for _, p := range Patterns() {
		if p == RandomWalk {
			// The walk is unconstrained by design.
			continue
		}
		wps := Generate(p, center, extent, rng)
		for i, wp := range wps {
			d := geo.Distance(center.Lat, center.Lon, wp.Lat, wp.Lon)
			if d > extent*4 {
				t.Errorf("pattern %s waypoint %d is %.0fm from center", p, i, d)
			}
		}
	}
}

func TestGenerateDistinctWaypoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, p := range Patterns() {
		wps := Generate(p, center, 1000, rng)
		distinct := false
		for i := 1; i < len(wps); i++ {
			if wps[i] != wps[0] {
				distinct = true
				break
			}
		}
		if !distinct {
			t.Errorf("pattern %s produced identical waypoints", p)
		}
	}
}

func TestRandomPatternInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		p := RandomPattern(rng)
		if p < 0 || p >= numPatterns {
			t.Fatalf("RandomPattern returned %d", p)
		}
	}
}

func TestPatternString(t *testing.T) {
	if PatrolRect.String() != "patrol_rect" {
		t.Errorf("unexpected name %s", PatrolRect.String())
	}
	if Pattern(99).String() != "unknown" {
		t.Errorf("expected unknown for out-of-range pattern")
	}
}
