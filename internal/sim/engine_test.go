package sim

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"fleetsim/internal/config"
	"fleetsim/internal/fence"
	"fleetsim/internal/geo"
	"fleetsim/internal/telemetry"
)

type mockSampleWriter struct {
	batches [][]telemetry.TelemetrySample
	fail    bool
}

func (m *mockSampleWriter) WriteSample(s telemetry.TelemetrySample) error {
	return m.WriteSamples([]telemetry.TelemetrySample{s})
}

func (m *mockSampleWriter) WriteSamples(samples []telemetry.TelemetrySample) error {
	if m.fail {
		return errors.New("sink unavailable")
	}
	m.batches = append(m.batches, samples)
	return nil
}

type mockStatusWriter struct {
	writes []map[string]string
	fail   bool
}

func (m *mockStatusWriter) UpdateAgentStatuses(statuses map[string]string, lastSeen time.Time) error {
	if m.fail {
		return errors.New("sink unavailable")
	}
	cp := make(map[string]string, len(statuses))
	for k, v := range statuses {
		cp[k] = v
	}
	m.writes = append(m.writes, cp)
	return nil
}

type mockStats struct {
	stats telemetry.FleetStats
}

func (m *mockStats) FleetStats() (telemetry.FleetStats, error) { return m.stats, nil }

type mockBroadcaster struct {
	updates  [][]telemetry.AgentUpdate
	activity [][]fence.ZoneActivity
	stats    []telemetry.FleetStats
}

func (m *mockBroadcaster) PushUpdates(u []telemetry.AgentUpdate) { m.updates = append(m.updates, u) }

func (m *mockBroadcaster) PushZoneActivity(a []fence.ZoneActivity) {
	m.activity = append(m.activity, a)
}

func (m *mockBroadcaster) PushStats(s telemetry.FleetStats) { m.stats = append(m.stats, s) }

func testConfig() *config.Config {
	return &config.Config{
		Fleet: config.Fleet{Size: 15},
		Population: config.Population{
			MinActive: 5,
			MaxActive: 10,
		},
		Motion: config.Motion{
			StepM:           40,
			ArrivalEpsilonM: 25,
			RouteExtentM:    1500,
			SpeedMinMPS:     10,
			SpeedMaxMPS:     45,
			SpeedJitterMPS:  2,
			AltMinM:         50,
			AltMaxM:         300,
			AltJitterM:      3,
		},
		TickSeconds:  1,
		FlushSeconds: 10,
	}
}

func testAgents(n int) []telemetry.Agent {
	agents := make([]telemetry.Agent, n)
	for i := range agents {
		agents[i] = telemetry.Agent{
			ID:     string(rune('a'+i)) + "-agent",
			Name:   "test",
			Band:   "uhf",
			Status: telemetry.StatusInactive,
		}
	}
	return agents
}

func testZones() []fence.Zone {
	return []fence.Zone{{
		ID:        "z1",
		Name:      "test-zone",
		CenterLat: 48.2082,
		CenterLon: 16.3738,
		RadiusM:   2500,
	}}
}

// newTestEngine wires an engine to mocks with a deterministic rng and a frozen
// clock that never lands on a flush boundary.
func newTestEngine(cfg *config.Config, n int) (*Engine, *mockSampleWriter, *mockStatusWriter, *mockBroadcaster) {
	samples := &mockSampleWriter{}
	statuses := &mockStatusWriter{}
	bc := &mockBroadcaster{}
	e := NewEngine(cfg, testAgents(n), testZones(), samples, statuses, &mockStats{}, bc)
	e.rng = rand.New(rand.NewSource(1))
	e.now = func() time.Time { return time.Unix(1001, 0) }
	return e, samples, statuses, bc
}

func TestFirstTickActivatesToMaximum(t *testing.T) {
	e, _, _, bc := newTestEngine(testConfig(), 15)

	e.tick(context.Background())

	if got := e.activeCount(); got != 10 {
		t.Fatalf("active after first tick = %d, want 10", got)
	}
	if len(bc.updates) != 1 || len(bc.updates[0]) != 10 {
		t.Errorf("expected one broadcast with 10 updates, got %d", len(bc.updates[0]))
	}
}

func TestLifecycleActivatesWholeFleetBelowMinimum(t *testing.T) {
	cfg := testConfig()
	e, _, _, _ := newTestEngine(cfg, 3)

	e.tick(context.Background())

	if got := e.activeCount(); got != 3 {
		t.Errorf("fleet smaller than min_active: active = %d, want 3", got)
	}
}

func TestPopulationStaysWithinBand(t *testing.T) {
	cfg := testConfig()
	cfg.Population.DeactivationProb = 0.2
	e, _, _, _ := newTestEngine(cfg, 15)

	for i := 0; i < 200; i++ {
		e.tick(context.Background())
		active := e.activeCount()
		if active < cfg.Population.MinActive || active > cfg.Population.MaxActive {
			t.Fatalf("tick %d: active = %d, want within [%d,%d]",
				i, active, cfg.Population.MinActive, cfg.Population.MaxActive)
		}
	}
}

func TestDeactivatedAgentAppearsOnceInDelta(t *testing.T) {
	cfg := testConfig()
	cfg.Population.MinActive = 1
	cfg.Population.MaxActive = 3
	cfg.Population.DeactivationProb = 1
	e, _, _, bc := newTestEngine(cfg, 3)

	e.tick(context.Background())

	updates := bc.updates[0]
	if len(updates) != 3 {
		t.Fatalf("delta size = %d, want 3", len(updates))
	}
	inactive := 0
	for _, u := range updates {
		if u.Status == telemetry.StatusInactive {
			inactive++
		}
	}
	if inactive != 2 {
		t.Errorf("just-deactivated agents in delta = %d, want 2", inactive)
	}
	if e.activeCount() != 1 {
		t.Errorf("active after tick = %d, want min of 1", e.activeCount())
	}

	// Next tick: resting agents are absent from the delta until reactivated.
	e.tick(context.Background())
	for _, u := range bc.updates[1] {
		if u.Status == telemetry.StatusInactive {
			t.Errorf("resting agent %s broadcast again", u.ID)
		}
	}
}

func TestInactiveAgentsNeverMove(t *testing.T) {
	cfg := testConfig()
	cfg.Population.MinActive = 2
	cfg.Population.MaxActive = 2
	e, _, _, _ := newTestEngine(cfg, 5)

	e.tick(context.Background())

	resting := make(map[string]telemetry.Position)
	for id, st := range e.states {
		if st.Status == telemetry.StatusInactive {
			resting[id] = st.Position
		}
	}
	if len(resting) != 3 {
		t.Fatalf("resting agents = %d, want 3", len(resting))
	}

	for i := 0; i < 20; i++ {
		e.tick(context.Background())
	}
	for id, pos := range resting {
		st := e.states[id]
		if st.Status != telemetry.StatusActive && st.Position != pos {
			t.Errorf("inactive agent %s moved from %+v to %+v", id, pos, st.Position)
		}
	}
}

func TestIntegrateStepsTowardWaypoint(t *testing.T) {
	cfg := testConfig()
	e, _, _, _ := newTestEngine(cfg, 1)
	e.tick(context.Background())

	for id, st := range e.states {
		target := st.Route[st.Waypoint]
		before := st.Position
		beforeDist := geo.Distance(before.Lat, before.Lon, target.Lat, target.Lon)
		if beforeDist < cfg.Motion.ArrivalEpsilonM {
			t.Skipf("agent %s already at waypoint after first tick", id)
		}

		e.integrate(st)

		moved := geo.Distance(before.Lat, before.Lon, st.Position.Lat, st.Position.Lon)
		if moved > cfg.Motion.StepM+1 {
			t.Errorf("step = %.1fm, exceeds configured %.0fm", moved, cfg.Motion.StepM)
		}
		afterDist := geo.Distance(st.Position.Lat, st.Position.Lon, target.Lat, target.Lon)
		if afterDist >= beforeDist {
			t.Errorf("distance to waypoint grew: %.1fm -> %.1fm", beforeDist, afterDist)
		}
	}
}

func TestKinematicsStayWithinBounds(t *testing.T) {
	cfg := testConfig()
	e, _, _, _ := newTestEngine(cfg, 15)

	for i := 0; i < 100; i++ {
		e.tick(context.Background())
		for id, st := range e.states {
			if st.Status != telemetry.StatusActive {
				continue
			}
			if st.Heading < 0 || st.Heading >= 360 {
				t.Fatalf("agent %s heading %.2f out of [0,360)", id, st.Heading)
			}
			if st.SpeedMPS < cfg.Motion.SpeedMinMPS || st.SpeedMPS > cfg.Motion.SpeedMaxMPS {
				t.Fatalf("agent %s speed %.2f out of bounds", id, st.SpeedMPS)
			}
			if st.Position.Alt < cfg.Motion.AltMinM || st.Position.Alt > cfg.Motion.AltMaxM {
				t.Fatalf("agent %s altitude %.2f out of bounds", id, st.Position.Alt)
			}
		}
	}
}

func TestFlushWritesActiveSamplesAndDirtyStatuses(t *testing.T) {
	cfg := testConfig()
	cfg.Population.MinActive = 7
	cfg.Population.MaxActive = 7
	e, samples, statuses, bc := newTestEngine(cfg, 7)
	e.now = func() time.Time { return time.Unix(1000, 0) } // 1000 % 10 == 0

	e.tick(context.Background())

	if len(samples.batches) != 1 {
		t.Fatalf("flush batches = %d, want 1", len(samples.batches))
	}
	if got := len(samples.batches[0]); got != 7 {
		t.Errorf("samples in flush = %d, want 7", got)
	}
	if len(statuses.writes) != 1 {
		t.Fatalf("status writes = %d, want 1", len(statuses.writes))
	}
	if got := len(statuses.writes[0]); got != 7 {
		t.Errorf("status rows = %d, want 7", got)
	}
	for id, s := range statuses.writes[0] {
		if s != telemetry.StatusActive {
			t.Errorf("agent %s flushed as %s, want active", id, s)
		}
	}
	if len(bc.stats) != 1 {
		t.Errorf("stats pushes = %d, want 1", len(bc.stats))
	}
}

func TestFlushSkipsOffBoundaryAndDoubleFire(t *testing.T) {
	cfg := testConfig()
	e, samples, _, _ := newTestEngine(cfg, 15)

	e.now = func() time.Time { return time.Unix(1001, 0) }
	e.tick(context.Background())
	if len(samples.batches) != 0 {
		t.Fatalf("flush fired off the modulus boundary")
	}

	e.now = func() time.Time { return time.Unix(1010, 0) }
	e.tick(context.Background())
	e.tick(context.Background())
	if len(samples.batches) != 1 {
		t.Errorf("flushes at the same boundary second = %d, want 1", len(samples.batches))
	}
}

func TestFailedFlushRetainsDirtyStatuses(t *testing.T) {
	cfg := testConfig()
	cfg.Population.MinActive = 2
	cfg.Population.MaxActive = 2
	e, samples, statuses, _ := newTestEngine(cfg, 2)
	samples.fail = true
	e.now = func() time.Time { return time.Unix(1000, 0) }

	e.tick(context.Background())
	if len(statuses.writes) != 0 {
		t.Fatalf("status write ran despite sample failure")
	}
	if len(e.dirty) != 2 {
		t.Fatalf("dirty set = %d after failed flush, want 2 retained", len(e.dirty))
	}

	samples.fail = false
	e.now = func() time.Time { return time.Unix(1010, 0) }
	e.tick(context.Background())
	if len(statuses.writes) != 1 || len(statuses.writes[0]) != 2 {
		t.Fatalf("retry flush did not reconcile retained statuses: %+v", statuses.writes)
	}
	if len(e.dirty) != 0 {
		t.Errorf("dirty set not cleared after successful flush")
	}
}

func TestSafeTickRecoversPanic(t *testing.T) {
	cfg := testConfig()
	e, _, _, _ := newTestEngine(cfg, 2)
	e.tick(context.Background())

	// Corrupt one active route so integrate panics on the nil waypoint list.
	for _, st := range e.states {
		if st.Status == telemetry.StatusActive {
			st.Route = nil
			break
		}
	}

	if err := e.safeTick(context.Background()); err == nil {
		t.Fatal("expected tick panic to surface as an error")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	e, _, _, _ := newTestEngine(cfg, 2)
	e.tickInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

func TestActivateSnapsToFirstWaypoint(t *testing.T) {
	cfg := testConfig()
	e, _, _, _ := newTestEngine(cfg, 1)

	st := e.states[e.agents[0].ID]
	e.activate(e.agents[0].ID, st)

	if len(st.Route) == 0 {
		t.Fatal("activation produced an empty route")
	}
	// Altitude is randomized after the snap; compare the surface point.
	if st.Position.Lat != st.Route[0].Lat || st.Position.Lon != st.Route[0].Lon {
		t.Errorf("agent not snapped to first waypoint")
	}
	if st.SpeedMPS < cfg.Motion.SpeedMinMPS || st.SpeedMPS > cfg.Motion.SpeedMaxMPS {
		t.Errorf("activation speed %.2f out of configured bounds", st.SpeedMPS)
	}
	if st.Status != telemetry.StatusActive {
		t.Errorf("activation left status %s", st.Status)
	}
}
