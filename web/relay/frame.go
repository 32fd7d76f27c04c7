package relay

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Event names a relay frame.
type Event string

const (
	EventJoinRoom         Event = "join-room"
	EventLeaveRoom        Event = "leave-room"
	EventUserConnected    Event = "user-connected"
	EventUserDisconnected Event = "user-disconnected"
	EventRoomFull         Event = "room-full"
	EventJoinRejected     Event = "join-rejected"
)

// ID is a room or user identifier. Clients may send it as a JSON string or
// number; it is always echoed back as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Frame is the JSON envelope exchanged over the socket in both directions.
type Frame struct {
	Event  Event `json:"event"`
	RoomId ID    `json:"roomId,omitempty"`
	UserId ID    `json:"userId,omitempty"`
	Time   int64 `json:"time,omitempty"`
}

func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

func encodeFrame(f Frame) []byte {
	data, _ := json.Marshal(f)
	return data
}
