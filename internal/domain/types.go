package domain

import (
	"fmt"
	"time"
)

// Kind classifies a chat message.
type Kind string

const (
	KindText   Kind = "text"
	KindJoin   Kind = "join"
	KindSystem Kind = "system"
)

// RoomName is the display name of the public room.
const RoomName = "The Cosmic River"

// User is an authenticated identity as reported by the backend.
type User struct {
	ID    string
	Email string
}

// Profile is the public identity attached to a user.
type Profile struct {
	ID            string
	Name          string // e.g. "Nyx 7"
	Number        int
	StatusMessage string
}

// Message is a chat message in either the public room or a private conversation.
type Message struct {
	ID      string // temporary until the backend confirms the write
	LocalID string // client-only handle for optimistic entries

	SenderID     string
	SenderName   string
	SenderNumber int

	Body      string
	Kind      Kind
	CreatedAt time.Time

	// Private messages only.
	ReceiverID     string
	ReceiverName   string
	ReceiverNumber int
	Read           bool

	Pending bool
}

// IsPrivate reports whether the message belongs to a one-to-one conversation.
func (m Message) IsPrivate() bool {
	return m.ReceiverID != ""
}

// Involves reports whether the message was exchanged between a and b.
func (m Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// PresenceEntry is one user's online state.
type PresenceEntry struct {
	UserID   string
	Name     string
	Number   int
	Status   string
	Online   bool
	LastSeen time.Time
}

// PresenceTransition is a pushed change of a user's online flag.
type PresenceTransition struct {
	Entry     PresenceEntry
	WasOnline bool
}

// Scope identifies the conversation a chat session is bound to.
// The zero value is the public room.
type Scope struct {
	PeerID     string
	PeerName   string
	PeerNumber int
}

// PublicScope returns the public room scope.
func PublicScope() Scope {
	return Scope{}
}

// PrivateScope returns the scope of a one-to-one conversation with p.
func PrivateScope(p Profile) Scope {
	return Scope{PeerID: p.ID, PeerName: p.Name, PeerNumber: p.Number}
}

// IsPrivate reports whether the scope is a one-to-one conversation.
func (s Scope) IsPrivate() bool {
	return s.PeerID != ""
}

func (s Scope) String() string {
	if s.IsPrivate() {
		return fmt.Sprintf("dm:%s", s.PeerID)
	}
	return "room"
}

// Title is the human-readable name of the scope.
func (s Scope) Title() string {
	if s.IsPrivate() {
		return s.PeerName
	}
	return RoomName
}
