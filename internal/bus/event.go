package bus

import "time"

// Event is a domain event published on the bus. Kind is a dotted name;
// subscribers filter by namespace prefix (e.g. "chat.").
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the client core.
const (
	TransportConnected    = "transport.connected"
	TransportDisconnected = "transport.disconnected"
	TransportMessage      = "transport.message"
	TransportOnlineUsers  = "transport.online_users"

	ChatSelected      = "chat.selected"
	ChatRefresh       = "chat.refresh"
	ChatUpdated       = "chat.updated"
	ChatRemoved       = "chat.removed"
	ChatStatusChanged = "chat.status_changed"

	MessageLoaded     = "message.loaded"
	MessageLoadFailed = "message.load_failed"
	MessageAppended   = "message.appended"
	MessageRemoved    = "message.removed"
)
