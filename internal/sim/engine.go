// Engine orchestrating agent lifecycle, motion, and persistence ticks
package sim

import (
	"math"
	"math/rand"
	"time"

	"fleetsim/internal/config"
	"fleetsim/internal/fence"
	"fleetsim/internal/route"
	"fleetsim/internal/telemetry"
)

// StatsSource supplies durable fleet statistics for the flush broadcast.
type StatsSource interface {
	FleetStats() (telemetry.FleetStats, error)
}

// Engine owns all ephemeral simulation state. Its tick goroutine is the only
// writer of the state table; everything else observes through durable storage
// or the Broadcaster.
type Engine struct {
	cfg     *config.Config
	agents  []telemetry.Agent
	states  map[string]*telemetry.SimState
	zones   []fence.Zone
	samples SampleWriter
	statuses StatusWriter
	stats   StatsSource
	bc      Broadcaster

	tickInterval time.Duration
	panicBackoff time.Duration

	// dirty holds status transitions not yet durably written, retained
	// across failed flushes.
	dirty         map[string]string
	lastFlushUnix int64

	rng *rand.Rand
	now func() time.Time
}

// NewEngine initializes ephemeral state for the provisioned agents. All
// agents start with live status Inactive and no route; the first tick brings
// the population up into the configured band.
func NewEngine(cfg *config.Config, agents []telemetry.Agent, zones []fence.Zone,
	samples SampleWriter, statuses StatusWriter, stats StatsSource, bc Broadcaster) *Engine {

	e := &Engine{
		cfg:          cfg,
		agents:       agents,
		states:       make(map[string]*telemetry.SimState, len(agents)),
		zones:        zones,
		samples:      samples,
		statuses:     statuses,
		stats:        stats,
		bc:           bc,
		tickInterval: time.Duration(cfg.TickSeconds) * time.Second,
		panicBackoff: 5 * time.Second,
		dirty:        make(map[string]string),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
	}

	var home telemetry.Position
	if len(zones) > 0 {
		home = telemetry.Position{Lat: zones[0].CenterLat, Lon: zones[0].CenterLon, Alt: cfg.Motion.AltMinM}
	}
	for _, a := range agents {
		e.states[a.ID] = &telemetry.SimState{
			Position: home,
			Status:   telemetry.StatusInactive,
		}
	}
	return e
}

func (e *Engine) activeCount() int {
	n := 0
	for _, st := range e.states {
		if st.Status == telemetry.StatusActive {
			n++
		}
	}
	return n
}

// activate assigns a fresh route and snaps the agent onto its first waypoint.
func (e *Engine) activate(id string, st *telemetry.SimState) {
	center := e.routeCenter()
	st.Route = route.Generate(route.RandomPattern(e.rng), center, e.cfg.Motion.RouteExtentM, e.rng)
	st.Waypoint = 0
	st.Position = st.Route[0]
	st.Position.Alt = e.cfg.Motion.AltMinM + e.rng.Float64()*(e.cfg.Motion.AltMaxM-e.cfg.Motion.AltMinM)
	st.SpeedMPS = e.cfg.Motion.SpeedMinMPS + e.rng.Float64()*(e.cfg.Motion.SpeedMaxMPS-e.cfg.Motion.SpeedMinMPS)
	st.Heading = 0
	st.Status = telemetry.StatusActive
	e.dirty[id] = telemetry.StatusActive
}

// deactivate clears the route; the agent rests at its last position.
func (e *Engine) deactivate(id string, st *telemetry.SimState) {
	st.Route = nil
	st.Waypoint = 0
	st.SpeedMPS = 0
	st.Status = telemetry.StatusInactive
	e.dirty[id] = telemetry.StatusInactive
}

// routeCenter picks a configured zone center jittered within half its radius,
// so generated routes actually cross the geofences.
func (e *Engine) routeCenter() telemetry.Position {
	if len(e.zones) == 0 {
		return telemetry.Position{}
	}
	z := e.zones[e.rng.Intn(len(e.zones))]
	angle := e.rng.Float64() * 2 * math.Pi
	r := e.rng.Float64() * z.RadiusM * 0.5
	dLat := (r * math.Cos(angle)) / 111000
	dLon := (r * math.Sin(angle)) / (111000 * math.Cos(z.CenterLat*math.Pi/180))
	return telemetry.Position{Lat: z.CenterLat + dLat, Lon: z.CenterLon + dLon}
}
