package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		data    string
		want    inboundEvent
		wantErr bool
	}{
		{
			name:  "subscribe",
			event: "subscribe",
			data:  `"00009zone1"`,
			want:  inboundEvent{kind: kindSubscribe, topic: "00009zone1"},
		},
		{
			name:  "unsubscribe",
			event: "unsubscribe",
			data:  `"00009zone1"`,
			want:  inboundEvent{kind: kindUnsubscribe, topic: "00009zone1"},
		},
		{
			name:    "subscribe empty topic",
			event:   "subscribe",
			data:    `""`,
			wantErr: true,
		},
		{
			name:    "subscribe non-string payload",
			event:   "subscribe",
			data:    `{"topic":"x"}`,
			wantErr: true,
		},
		{
			name:  "join-room",
			event: "join-room",
			data:  `{"roomName":"00009zone1","deviceName":"greenhouse-9"}`,
			want: inboundEvent{
				kind: kindJoinRoom,
				room: JoinRoomRequest{RoomName: "00009zone1", DeviceName: "greenhouse-9"},
			},
		},
		{
			name:  "leave-room",
			event: "leave-room",
			data:  `{"roomName":"00009zone1"}`,
			want: inboundEvent{
				kind: kindLeaveRoom,
				room: JoinRoomRequest{RoomName: "00009zone1"},
			},
		},
		{
			name:    "join-room missing roomName",
			event:   "join-room",
			data:    `{"deviceName":"x"}`,
			wantErr: true,
		},
		{
			name:    "join-room malformed payload",
			event:   "join-room",
			data:    `"just a string"`,
			wantErr: true,
		},
		{
			name:  "dynamic relay splits on first delimiter",
			event: "zone1-irrigationToggle",
			data:  `{"on":true}`,
			want: inboundEvent{
				kind: kindRelay,
				relay: OpaqueRelay{
					Room:      "zone1",
					EventType: "irrigationToggle",
					Payload:   json.RawMessage(`{"on":true}`),
				},
			},
		},
		{
			name:  "relay event type keeps later delimiters",
			event: "zone1-pump-override",
			data:  `{}`,
			want: inboundEvent{
				kind: kindRelay,
				relay: OpaqueRelay{
					Room:      "zone1",
					EventType: "pump-override",
					Payload:   json.RawMessage(`{}`),
				},
			},
		},
		{
			name:    "no delimiter",
			event:   "ping",
			wantErr: true,
		},
		{
			name:    "leading delimiter",
			event:   "-oops",
			wantErr: true,
		},
		{
			name:    "trailing delimiter",
			event:   "zone1-",
			wantErr: true,
		},
		{
			name:    "reserved name never relays",
			event:   "join-room",
			data:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Envelope{Event: tt.event, Data: json.RawMessage(tt.data)}
			got, err := parseInbound(env)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinRoomRequest_Validate(t *testing.T) {
	assert.NoError(t, JoinRoomRequest{RoomName: "00009zone1"}.Validate())
	assert.Error(t, JoinRoomRequest{}.Validate())

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, JoinRoomRequest{RoomName: string(long)}.Validate())
	assert.Error(t, JoinRoomRequest{RoomName: "ok", DeviceName: string(long)}.Validate())
}

func TestTopicRoom(t *testing.T) {
	assert.Equal(t, "topic:00009zone1", TopicRoom("00009zone1"))
}
