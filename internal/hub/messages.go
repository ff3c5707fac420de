package hub

import "encoding/json"

// Inbound request types.
const (
	reqSubscribeZone   = "subscribe_zone"
	reqUnsubscribeZone = "unsubscribe_zone"
	reqGetTrajectory   = "get_trajectory"
	reqGetZones        = "get_zones"
	reqGetStatistics   = "get_statistics"
	reqGetAgents       = "get_agents"
)

// Outbound event types. Payload shapes are stable per type.
const (
	eventConnected    = "connected"
	eventSnapshot     = "snapshot"
	eventPositions    = "positions"
	eventZones        = "zones"
	eventStatistics   = "statistics"
	eventTrajectory   = "trajectory"
	eventZoneActivity = "zone_activity"
	eventAgents       = "agents"
	eventSubscribed   = "subscribed"
	eventUnsubscribed = "unsubscribed"
	eventError        = "error"
)

// request is the inbound message envelope. Fields beyond Type are read
// depending on the request type.
type request struct {
	Type    string `json:"type"`
	ZoneID  string `json:"zone_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Hours   int    `json:"hours,omitempty"`
	Status  string `json:"status,omitempty"`
	Band    string `json:"band,omitempty"`
}

// event is the outbound message envelope.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (e event) marshal() ([]byte, error) {
	return json.Marshal(e)
}

// connectedPayload greets a new connection.
type connectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

// subscriptionPayload acknowledges group membership changes.
type subscriptionPayload struct {
	ZoneID string `json:"zone_id"`
}

// errorPayload reports a failed request back to its caller only.
type errorPayload struct {
	Request string `json:"request"`
	Reason  string `json:"reason"`
}

// trajectoryPayload carries a time-bounded replay result.
type trajectoryPayload struct {
	AgentID string `json:"agent_id"`
	Hours   int    `json:"hours"`
	Samples any    `json:"samples"`
}
