package hub

import (
	"time"

	"fleetsim/internal/telemetry"
)

const maxTrajectoryHours = 24 * 7

// greet sends the connect-time sequence: ack, current fleet snapshot, zone
// list, and statistics, so a new client never needs to poll.
func (c *client) greet() {
	c.sendEvent(event{Type: eventConnected, Data: connectedPayload{ConnectionID: c.id}})

	snaps, err := c.hub.store.LastKnownPositions()
	if err != nil {
		c.hub.log.Error("snapshot query failed", "connection_id", c.id, "err", err)
	} else {
		c.sendEvent(event{Type: eventSnapshot, Data: snaps})
	}

	c.sendEvent(event{Type: eventZones, Data: c.hub.zones})

	stats, err := c.hub.store.FleetStats()
	if err != nil {
		c.hub.log.Error("stats query failed", "connection_id", c.id, "err", err)
		return
	}
	c.sendEvent(event{Type: eventStatistics, Data: stats})
}

// dispatch answers one on-demand request. Handlers only read durable storage;
// a malformed request is answered with an error event on this connection and
// affects nobody else.
func (h *Hub) dispatch(c *client, req request) {
	switch req.Type {
	case reqSubscribeZone:
		if _, ok := h.zoneByID(req.ZoneID); !ok {
			c.sendEvent(event{Type: eventError, Data: errorPayload{Request: req.Type, Reason: "unknown zone"}})
			return
		}
		h.subscribe(c, zoneGroup(req.ZoneID))
		c.sendEvent(event{Type: eventSubscribed, Data: subscriptionPayload{ZoneID: req.ZoneID}})

	case reqUnsubscribeZone:
		h.unsubscribe(c, zoneGroup(req.ZoneID))
		c.sendEvent(event{Type: eventUnsubscribed, Data: subscriptionPayload{ZoneID: req.ZoneID}})

	case reqGetTrajectory:
		hours := req.Hours
		if hours <= 0 {
			hours = 1
		}
		if hours > maxTrajectoryHours {
			hours = maxTrajectoryHours
		}
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		samples, err := h.store.Trajectory(req.AgentID, since)
		if err != nil {
			h.log.Error("trajectory query failed", "agent_id", req.AgentID, "err", err)
			c.sendEvent(event{Type: eventError, Data: errorPayload{Request: req.Type, Reason: "query failed"}})
			return
		}
		if samples == nil {
			samples = []telemetry.TelemetrySample{}
		}
		c.sendEvent(event{Type: eventTrajectory, Data: trajectoryPayload{
			AgentID: req.AgentID,
			Hours:   hours,
			Samples: samples,
		}})

	case reqGetZones:
		c.sendEvent(event{Type: eventZones, Data: h.zones})

	case reqGetStatistics:
		stats, err := h.store.FleetStats()
		if err != nil {
			h.log.Error("stats query failed", "err", err)
			c.sendEvent(event{Type: eventError, Data: errorPayload{Request: req.Type, Reason: "query failed"}})
			return
		}
		c.sendEvent(event{Type: eventStatistics, Data: stats})

	case reqGetAgents:
		agents, err := h.store.ListAgents(req.Status, req.Band)
		if err != nil {
			h.log.Error("agent query failed", "err", err)
			c.sendEvent(event{Type: eventError, Data: errorPayload{Request: req.Type, Reason: "query failed"}})
			return
		}
		if agents == nil {
			agents = []telemetry.Agent{}
		}
		c.sendEvent(event{Type: eventAgents, Data: agents})

	default:
		c.sendEvent(event{Type: eventError, Data: errorPayload{Request: req.Type, Reason: "unknown request type"}})
	}
}
