// Package hub fans simulation state out to live websocket subscribers and
// answers their on-demand queries from durable storage.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleetsim/internal/fence"
	"fleetsim/internal/store"
	"fleetsim/internal/telemetry"
)

// GroupAll is the broadcast group every connection joins on connect.
const GroupAll = "agents:all"

func zoneGroup(zoneID string) string {
	return "zone:" + zoneID
}

// Hub coordinates subscriber groups. It reads durable storage only; it never
// touches the engine's simulation state.
type Hub struct {
	store *store.Store
	zones []fence.Zone
	log   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	groups  map[string]map[*client]struct{}

	upgrader websocket.Upgrader
}

// New creates a hub serving the given zone cache and store.
func New(st *store.Store, zones []fence.Zone, log *slog.Logger) *Hub {
	return &Hub{
		store:   st,
		zones:   zones,
		log:     log,
		clients: make(map[*client]struct{}),
		groups:  make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (h *Hub) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Handler exposes the websocket endpoint for tests.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handleWS)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.subscribe(c, GroupAll)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for name, members := range h.groups {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
	h.mu.Unlock()

	// Outside the hub lock: a broadcast holding a stale member snapshot may
	// call trySend concurrently, which must observe the closed flag instead
	// of racing the channel close.
	c.shutdown()
}

func (h *Hub) subscribe(c *client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// broadcast delivers an event to every member of a group. Delivery is
// best-effort: a member whose send buffer is full is disconnected rather than
// allowed to block the tick or its peers.
func (h *Hub) broadcast(group string, ev event) {
	data, err := ev.marshal()
	if err != nil {
		h.log.Error("marshal broadcast", "type", ev.Type, "err", err)
		return
	}

	h.mu.RLock()
	members := make([]*client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.trySend(data)
	}
}

// broadcastAll delivers an event to every connected client.
func (h *Hub) broadcastAll(ev event) {
	data, err := ev.marshal()
	if err != nil {
		h.log.Error("marshal broadcast", "type", ev.Type, "err", err)
		return
	}

	h.mu.RLock()
	members := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.trySend(data)
	}
}

// PushUpdates implements sim.Broadcaster.
func (h *Hub) PushUpdates(updates []telemetry.AgentUpdate) {
	if len(updates) == 0 {
		return
	}
	h.broadcast(GroupAll, event{Type: eventPositions, Data: updates})
}

// PushZoneActivity implements sim.Broadcaster. Every client receives the full
// non-empty activity list; zone subscribers additionally get an event scoped
// to their zone.
func (h *Hub) PushZoneActivity(activity []fence.ZoneActivity) {
	if activity == nil {
		activity = []fence.ZoneActivity{}
	}
	h.broadcastAll(event{Type: eventZoneActivity, Data: activity})
	for _, za := range activity {
		h.broadcast(zoneGroup(za.ZoneID), event{Type: eventZoneActivity, Data: []fence.ZoneActivity{za}})
	}
}

// PushStats implements sim.Broadcaster.
func (h *Hub) PushStats(stats telemetry.FleetStats) {
	h.broadcastAll(event{Type: eventStatistics, Data: stats})
}

func (h *Hub) zoneByID(id string) (fence.Zone, bool) {
	for _, z := range h.zones {
		if z.ID == id {
			return z, true
		}
	}
	return fence.Zone{}, false
}
