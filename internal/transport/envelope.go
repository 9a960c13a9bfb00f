package transport

import "encoding/json"

// Frame is the socket wire format: a named event with a JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event names on the chat socket.
const (
	// Outbound.
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventNewMessage = "new message"

	// Inbound.
	EventConnected       = "connected"
	EventOnlineUsers     = "onlineUsers"
	EventMessageReceived = "message received"
)

// newFrame encodes data as the payload of a named event.
func newFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
