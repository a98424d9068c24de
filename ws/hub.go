package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	telemetry "github.com/2saloni/agrolt-dashboard"
	"github.com/2saloni/agrolt-dashboard/model"
)

// Metrics holds the Prometheus collectors for the push layer.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	RelayedEvents    prometheus.Counter
	UpdatesPublished prometheus.Counter
}

// NewMetrics creates the hub collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agrolt",
			Subsystem: "ws",
			Name:      "connected_clients",
			Help:      "Currently connected viewers.",
		}),
		RelayedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrolt",
			Subsystem: "ws",
			Name:      "relayed_events_total",
			Help:      "Viewer-originated relay events forwarded to rooms.",
		}),
		UpdatesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrolt",
			Subsystem: "ws",
			Name:      "updates_published_total",
			Help:      "Committed records fanned out to viewer rooms.",
		}),
	}
	reg.MustRegister(m.ConnectedClients, m.RelayedEvents, m.UpdatesPublished)
	return m
}

// Hub owns every viewer connection and all room membership. Membership
// is mutated only on join/leave events arriving through the hub itself,
// so a single RWMutex over the two maps is the only synchronization the
// push layer needs.
//
// Hub implements telemetry.Broadcaster.
type Hub struct {
	logger   telemetry.Logger
	upgrader websocket.Upgrader
	metrics  *Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool // room name → members
	joined  map[*Client]map[string]bool // client → room names
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubMetrics sets the Prometheus metrics collection.
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a hub ready to accept viewer connections.
func NewHub(logger telemetry.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Viewer authorization happens upstream; the hub accepts
			// any origin and trusts the deployment's edge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		joined:  make(map[*Client]map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ telemetry.Broadcaster = (*Hub)(nil)

// ServeHTTP upgrades the request and serves the viewer until its
// connection dies.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, sendBufferSize),
	}
	h.register(client)

	go client.writePump()
	client.readPump()
}

// PublishTopicUpdate fans one committed record out to its three room
// classes: the per-topic compatibility room and the global all-topics
// room get a topicUpdate event; the zone rooms get a zoneData event
// with the same payload. Viewers who joined via join-room occupy the
// plain room named after the topic, so that room receives zoneData too;
// the bare zone-name room covers viewers watching a physical zone
// across devices.
func (h *Hub) PublishTopicUpdate(update model.TopicUpdate, zoneName string) {
	h.emitToRoom(TopicRoom(update.Name), EventTopicUpdate, update)
	h.emitToRoom(allTopicsRoom, EventTopicUpdate, update)
	h.emitToRoom(update.Name, EventZoneData, update)
	if zoneName != "" && zoneName != update.Name {
		h.emitToRoom(zoneName, EventZoneData, update)
	}
	if h.metrics != nil {
		h.metrics.UpdatesPublished.Inc()
	}
}

// BroadcastToZoneRoom pushes a server-originated ad hoc event to the
// zone's room. A no-op when the room is empty, so unattended zones cost
// no event construction.
func (h *Hub) BroadcastToZoneRoom(zoneName, eventName string, data interface{}) {
	if h.ZoneRoomClientCount(zoneName) == 0 {
		return
	}
	h.emitToRoom(zoneName, eventName, data)
}

// ZoneRoomClientCount returns the current occupancy of a zone room.
func (h *Hub) ZoneRoomClientCount(zoneName string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[zoneName])
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every viewer. The hub remains usable afterwards;
// this exists for orderly server shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
		_ = c.conn.Close()
	}
}

// dispatch routes one parsed viewer frame.
func (h *Hub) dispatch(c *Client, env Envelope) {
	ev, err := parseInbound(env)
	if err != nil {
		h.logger.Warnf("Viewer %s: %v", c.id, err)
		// join/leave still get their acknowledgment, carrying the
		// failure, so dashboards can surface it.
		if env.Event == EventJoinRoom || env.Event == EventLeaveRoom {
			ackEvent := EventRoomJoined
			if env.Event == EventLeaveRoom {
				ackEvent = EventRoomLeft
			}
			h.emitToClient(c, ackEvent, RoomAck{
				Success:   false,
				Message:   err.Error(),
				Timestamp: time.Now().UnixMilli(),
			})
		}
		return
	}

	switch ev.kind {
	case kindSubscribe:
		h.joinRooms(c, TopicRoom(ev.topic))
	case kindUnsubscribe:
		h.leaveRooms(c, TopicRoom(ev.topic))
	case kindJoinRoom:
		if ev.room.DeviceName != "" {
			c.deviceName = ev.room.DeviceName
		}
		// Join both the named room and its topic:-prefixed twin so
		// legacy per-topic subscribers and zone viewers stay in sync.
		h.joinRooms(c, ev.room.RoomName, TopicRoom(ev.room.RoomName))
		h.emitToClient(c, EventRoomJoined, RoomAck{
			RoomName:    ev.room.RoomName,
			DeviceName:  c.deviceName,
			Success:     true,
			Message:     "joined " + ev.room.RoomName,
			ClientCount: h.ZoneRoomClientCount(ev.room.RoomName),
			Timestamp:   time.Now().UnixMilli(),
		})
	case kindLeaveRoom:
		h.leaveRooms(c, ev.room.RoomName, TopicRoom(ev.room.RoomName))
		h.emitToClient(c, EventRoomLeft, RoomAck{
			RoomName:    ev.room.RoomName,
			DeviceName:  c.deviceName,
			Success:     true,
			Message:     "left " + ev.room.RoomName,
			ClientCount: h.ZoneRoomClientCount(ev.room.RoomName),
			Timestamp:   time.Now().UnixMilli(),
		})
	case kindRelay:
		h.relay(c, env.Event, ev.relay)
	}
}

// relay rebroadcasts a dynamic viewer event to the other occupants of
// its room, with origin id, timestamp, room name and event type merged
// into the payload. Viewers in the room's topic:-prefixed twin do not
// receive relays; the relay channel is scoped to the plain room.
func (h *Hub) relay(sender *Client, eventName string, r OpaqueRelay) {
	merged := make(map[string]interface{})
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &merged); err != nil || merged == nil {
			merged = map[string]interface{}{"payload": json.RawMessage(r.Payload)}
		}
	}
	merged["broadcasted"] = true
	merged["roomName"] = r.Room
	merged["eventType"] = r.EventType
	merged["senderId"] = sender.id
	merged["timestamp"] = time.Now().UnixMilli()

	frame, err := encodeFrame(eventName, merged)
	if err != nil {
		h.logger.Errorf("Failed to encode relay event %s: %v", eventName, err)
		return
	}

	h.mu.RLock()
	var stale []*Client
	for member := range h.rooms[r.Room] {
		if member == sender {
			continue
		}
		if !member.enqueue(frame) {
			stale = append(stale, member)
		}
	}
	h.mu.RUnlock()
	h.dropClients(stale)

	if h.metrics != nil {
		h.metrics.RelayedEvents.Inc()
	}
}

// register adds a newly upgraded viewer.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.joined[c] = make(map[string]bool)
	total := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectedClients.Inc()
	}
	h.logger.Debugf("Viewer %s connected (%d total)", c.id, total)
}

// unregister removes a viewer from every room and closes its send
// channel. Safe to call more than once per client.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range h.joined[c] {
		h.removeFromRoomLocked(c, room)
	}
	delete(h.joined, c)
	total := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	if h.metrics != nil {
		h.metrics.ConnectedClients.Dec()
	}
	h.logger.Debugf("Viewer %s disconnected (%d total)", c.id, total)
}

func (h *Hub) joinRooms(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]bool)
			h.rooms[room] = members
		}
		members[c] = true
		h.joined[c][room] = true
	}
}

func (h *Hub) leaveRooms(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		h.removeFromRoomLocked(c, room)
		delete(h.joined[c], room)
	}
}

// removeFromRoomLocked detaches a client from one room and evicts the
// room when it empties. Caller holds h.mu.
func (h *Hub) removeFromRoomLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// emitToRoom sends one event to every member of a room.
func (h *Hub) emitToRoom(room, event string, data interface{}) {
	h.mu.RLock()
	members := h.rooms[room]
	if len(members) == 0 {
		h.mu.RUnlock()
		return
	}
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.mu.RUnlock()
		h.logger.Errorf("Failed to encode %s event for room %s: %v", event, room, err)
		return
	}
	var stale []*Client
	for member := range members {
		if !member.enqueue(frame) {
			stale = append(stale, member)
		}
	}
	h.mu.RUnlock()
	h.dropClients(stale)
}

// emitToClient sends one event to a single viewer. Enqueueing happens
// under the read lock: unregister needs the write lock to close the
// send channel, so a frame can never race the close.
func (h *Hub) emitToClient(c *Client, event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Errorf("Failed to encode %s event: %v", event, err)
		return
	}
	h.mu.RLock()
	ok := h.clients[c] && c.enqueue(frame)
	registered := h.clients[c]
	h.mu.RUnlock()
	if registered && !ok {
		h.dropClients([]*Client{c})
	}
}

// dropClients disconnects viewers whose send buffers overflowed. A full
// buffer means the viewer stopped draining; holding its frames would
// stall fan-out memory-unbounded.
func (h *Hub) dropClients(stale []*Client) {
	for _, c := range stale {
		h.logger.Warnf("Viewer %s send buffer full, disconnecting", c.id)
		h.unregister(c)
		_ = c.conn.Close()
	}
}

// encodeFrame marshals an event envelope to its wire bytes.
func encodeFrame(event string, data interface{}) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: body})
}
