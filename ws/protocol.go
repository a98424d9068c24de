// Package ws implements the real-time push layer of the agrolt
// dashboard: a WebSocket hub that fans committed telemetry records out
// to viewer rooms and relays viewer-defined events between occupants of
// a room.
//
// Three room flavors coexist for the same committed record: the
// per-topic compatibility room ("topic:<name>"), the per-zone room
// (named after the zone, supporting multiple concurrent viewers of one
// physical zone), and the fixed "all-topics" room. Rooms are ephemeral:
// created on first join, gone when the last member leaves, never
// persisted.
package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Wire events originated by the server.
const (
	EventTopicUpdate = "topicUpdate"
	EventZoneData    = "zoneData"
	EventRoomJoined  = "room-joined"
	EventRoomLeft    = "room-left"
)

// Wire events accepted from viewers. Anything else containing the relay
// delimiter is treated as a dynamic relay event.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
)

// topicRoomPrefix namespaces the legacy per-topic rooms so a viewer
// joining zone room "00009zone1" and one joining "topic:00009zone1"
// land in distinct member sets.
const topicRoomPrefix = "topic:"

// allTopicsRoom receives every committed record regardless of topic.
const allTopicsRoom = "all-topics"

// relayDelimiter splits a dynamic event name into room and event type.
const relayDelimiter = "-"

// reservedEvents are inbound names that must never be parsed as relay
// events even though some contain the delimiter.
var reservedEvents = map[string]bool{
	EventSubscribe:   true,
	EventUnsubscribe: true,
	EventJoinRoom:    true,
	EventLeaveRoom:   true,
}

// Envelope is the wire framing for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomRequest is the payload of join-room and leave-room events.
type JoinRoomRequest struct {
	RoomName   string `json:"roomName"`
	DeviceName string `json:"deviceName"`
}

// Validate checks the request fields.
func (r JoinRoomRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RoomName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.DeviceName, validation.Length(0, 128)),
	)
}

// RoomAck is the payload of room-joined and room-left acknowledgments.
type RoomAck struct {
	RoomName    string `json:"roomName"`
	DeviceName  string `json:"deviceName"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ClientCount int    `json:"clientCount"`
	Timestamp   int64  `json:"timestamp"`
}

// OpaqueRelay carries a parsed dynamic relay event: the room and event
// type extracted from the inbound event name, plus the verbatim
// payload. The server interprets nothing beyond that split.
type OpaqueRelay struct {
	Room      string
	EventType string
	Payload   json.RawMessage
}

// inboundKind tags the parsed form of a viewer event.
type inboundKind int

const (
	kindUnknown inboundKind = iota
	kindSubscribe
	kindUnsubscribe
	kindJoinRoom
	kindLeaveRoom
	kindRelay
)

// inboundEvent is the tagged-dispatch form of one viewer frame: a fixed
// enumerated protocol event, or one OpaqueRelay variant for everything
// dynamic. Keeping the relay path explicit here is what stops the hub
// from becoming stringly-typed.
type inboundEvent struct {
	kind  inboundKind
	topic string          // kindSubscribe / kindUnsubscribe
	room  JoinRoomRequest // kindJoinRoom / kindLeaveRoom
	relay OpaqueRelay     // kindRelay
}

// parseInbound classifies one decoded envelope.
func parseInbound(env Envelope) (inboundEvent, error) {
	switch env.Event {
	case EventSubscribe, EventUnsubscribe:
		var topic string
		if err := json.Unmarshal(env.Data, &topic); err != nil {
			return inboundEvent{}, fmt.Errorf("%s: topic name must be a string: %w", env.Event, err)
		}
		if topic == "" {
			return inboundEvent{}, fmt.Errorf("%s: topic name is required", env.Event)
		}
		kind := kindSubscribe
		if env.Event == EventUnsubscribe {
			kind = kindUnsubscribe
		}
		return inboundEvent{kind: kind, topic: topic}, nil

	case EventJoinRoom, EventLeaveRoom:
		var req JoinRoomRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return inboundEvent{}, fmt.Errorf("%s: malformed payload: %w", env.Event, err)
		}
		if err := req.Validate(); err != nil {
			return inboundEvent{}, fmt.Errorf("%s: %w", env.Event, err)
		}
		kind := kindJoinRoom
		if env.Event == EventLeaveRoom {
			kind = kindLeaveRoom
		}
		return inboundEvent{kind: kind, room: req}, nil

	default:
		if reservedEvents[env.Event] {
			return inboundEvent{}, fmt.Errorf("unsupported event %q", env.Event)
		}
		idx := strings.Index(env.Event, relayDelimiter)
		if idx <= 0 || idx == len(env.Event)-1 {
			return inboundEvent{}, fmt.Errorf("unsupported event %q", env.Event)
		}
		return inboundEvent{
			kind: kindRelay,
			relay: OpaqueRelay{
				Room:      env.Event[:idx],
				EventType: env.Event[idx+1:],
				Payload:   env.Data,
			},
		}, nil
	}
}

// TopicRoom returns the per-topic room name for a topic.
func TopicRoom(topicName string) string {
	return topicRoomPrefix + topicName
}
