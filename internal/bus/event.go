package bus

import "time"

// Event kinds published by the client. Subscribers filter by prefix
// ("chat.", "presence.", "directory.").
const (
	KindChatStatus       = "chat.status_changed"
	KindChatLog          = "chat.log_changed"
	KindChatIncoming     = "chat.incoming"
	KindChatNotice       = "chat.notice"
	KindPresenceChanged  = "presence.changed"
	KindDirectoryChanged = "directory.changed"
	KindSessionEnded     = "session.ended"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
