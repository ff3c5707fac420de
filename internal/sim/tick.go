package sim

import (
	"context"
	"fmt"
	"time"

	"fleetsim/internal/fence"
	"fleetsim/internal/geo"
	"fleetsim/internal/logging"
	"fleetsim/internal/telemetry"
)

// Run starts the simulation loop and stops when the context is done. A panic
// inside a tick is logged and followed by a backoff instead of crashing the
// process; the loop is never restarted after cancellation.
func (e *Engine) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting engine", "tick_interval", e.tickInterval, "agents", len(e.agents))
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.safeTick(ctx); err != nil {
				log.Error("tick failed", "err", err)
				select {
				case <-time.After(e.panicBackoff):
				case <-ctx.Done():
					log.Info("stopping engine")
					return
				}
			}
		case <-ctx.Done():
			log.Info("stopping engine")
			return
		}
	}
}

// safeTick converts a tick panic into an error for the loop boundary.
func (e *Engine) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	e.tick(ctx)
	return nil
}

// tick runs one simulation step: lifecycle, motion, geofence evaluation,
// broadcast, and, on its own cadence, the persistence flush.
func (e *Engine) tick(ctx context.Context) {
	e.lifecycle()
	updates := e.advance()
	activity := fence.Evaluate(e.zones, updates)

	if e.bc != nil {
		e.bc.PushUpdates(updates)
		e.bc.PushZoneActivity(activity)
	}

	e.maybeFlush(ctx)
}

// lifecycle tops the active population up to the configured maximum whenever
// it has fallen below the minimum. A fleet smaller than the minimum simply
// activates everyone.
func (e *Engine) lifecycle() {
	active := e.activeCount()
	if active >= e.cfg.Population.MinActive {
		return
	}
	for _, a := range e.agents {
		if active >= e.cfg.Population.MaxActive {
			break
		}
		st := e.states[a.ID]
		if st.Status == telemetry.StatusActive {
			continue
		}
		e.activate(a.ID, st)
		active++
	}
}

// advance moves every active agent one step and collects the tick's updates.
// Just-deactivated agents appear once more in the delta with their final
// resting state so subscribers observe the transition.
func (e *Engine) advance() []telemetry.AgentUpdate {
	active := e.activeCount()
	updates := make([]telemetry.AgentUpdate, 0, active)

	for _, a := range e.agents {
		st := e.states[a.ID]
		if st.Status != telemetry.StatusActive {
			continue
		}

		e.integrate(st)

		if e.rng.Float64() < e.cfg.Population.DeactivationProb && active > e.cfg.Population.MinActive {
			e.deactivate(a.ID, st)
			active--
		}

		updates = append(updates, telemetry.AgentUpdate{
			ID:         a.ID,
			Lat:        st.Position.Lat,
			Lon:        st.Position.Lon,
			Alt:        st.Position.Alt,
			SpeedMPS:   st.SpeedMPS,
			HeadingDeg: st.Heading,
			Status:     st.Status,
		})
	}
	return updates
}

// integrate advances one agent toward its current waypoint, rotating to the
// next waypoint on arrival. Heading stays in [0,360); speed and altitude are
// perturbed within their configured bounds.
func (e *Engine) integrate(st *telemetry.SimState) {
	m := e.cfg.Motion
	target := st.Route[st.Waypoint]
	dist := geo.Distance(st.Position.Lat, st.Position.Lon, target.Lat, target.Lon)

	if dist < m.ArrivalEpsilonM {
		st.Waypoint = (st.Waypoint + 1) % len(st.Route)
		target = st.Route[st.Waypoint]
		dist = geo.Distance(st.Position.Lat, st.Position.Lon, target.Lat, target.Lon)
	}

	bearing := geo.Bearing(st.Position.Lat, st.Position.Lon, target.Lat, target.Lon)
	step := m.StepM
	if step > dist {
		step = dist
	}
	st.Position.Lat, st.Position.Lon = geo.Destination(st.Position.Lat, st.Position.Lon, bearing, step)
	st.Heading = bearing

	st.SpeedMPS = clamp(st.SpeedMPS+(e.rng.Float64()*2-1)*m.SpeedJitterMPS, m.SpeedMinMPS, m.SpeedMaxMPS)
	st.Position.Alt = clamp(st.Position.Alt+(e.rng.Float64()*2-1)*m.AltJitterM, m.AltMinM, m.AltMaxM)
}

// maybeFlush fires the persistence batch when the wall clock lands on the
// flush modulus, at most once per second boundary.
func (e *Engine) maybeFlush(ctx context.Context) {
	now := e.now()
	if now.Unix()%int64(e.cfg.FlushSeconds) != 0 {
		return
	}
	if now.Unix() == e.lastFlushUnix {
		return
	}
	e.lastFlushUnix = now.Unix()
	e.flush(ctx, now)
}

// flush snapshots all active agents into durable samples, reconciles durable
// status rows, and pushes fresh fleet statistics. Any store failure is logged
// and retried on the next scheduled flush; it never stops the loop.
func (e *Engine) flush(ctx context.Context, now time.Time) {
	log := logging.FromContext(ctx)

	var batch []telemetry.TelemetrySample
	statusSet := make(map[string]string, len(e.dirty))
	for id, status := range e.dirty {
		statusSet[id] = status
	}
	for _, a := range e.agents {
		st := e.states[a.ID]
		if st.Status != telemetry.StatusActive {
			continue
		}
		statusSet[a.ID] = telemetry.StatusActive
		batch = append(batch, telemetry.TelemetrySample{
			AgentID:    a.ID,
			Lat:        st.Position.Lat,
			Lon:        st.Position.Lon,
			Alt:        st.Position.Alt,
			SpeedMPS:   st.SpeedMPS,
			HeadingDeg: st.Heading,
			Timestamp:  now.UTC(),
		})
	}

	if err := writeSamples(e.samples, batch); err != nil {
		log.Error("sample flush failed", "rows", len(batch), "err", err)
		return
	}
	if err := e.statuses.UpdateAgentStatuses(statusSet, now.UTC()); err != nil {
		log.Error("status flush failed", "rows", len(statusSet), "err", err)
		return
	}
	e.dirty = make(map[string]string)

	if e.stats == nil || e.bc == nil {
		return
	}
	stats, err := e.stats.FleetStats()
	if err != nil {
		log.Error("stats refresh failed", "err", err)
		return
	}
	e.bc.PushStats(stats)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
