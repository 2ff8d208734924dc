package backend

import (
	"context"
	"time"

	"github.com/nyx-chat/nyx/internal/domain"
)

// Identity reports who is signed in.
type Identity interface {
	// CurrentUser returns ErrNotAuthenticated when nobody is signed in.
	CurrentUser(ctx context.Context) (domain.User, error)
}

// Auth signs users in and out.
type Auth interface {
	Identity
	SignIn(ctx context.Context, email, password string) (domain.User, error)
	SignUp(ctx context.Context, email, password, fullName string) (domain.User, error)
	SignOut(ctx context.Context) error
}

// NewProfile is the payload for a manually created profile.
type NewProfile struct {
	UserID   string
	FullName string
	Email    string
	Name     string
	Number   int
}

// Profiles reads and creates user profiles.
type Profiles interface {
	// Profile returns ErrProfileMissing when the user has no profile row.
	Profile(ctx context.Context, userID string) (domain.Profile, error)
	ProfileByNumber(ctx context.Context, number int) (domain.Profile, error)
	// ListUsers returns every profile, online first, then by last activity.
	ListUsers(ctx context.Context) ([]domain.PresenceEntry, error)
	// CreateNyxProfile asks the backend to assign the next Nyx name.
	CreateNyxProfile(ctx context.Context, userID, fullName, email string) (string, error)
	LastNyxNumber(ctx context.Context) (int, error)
	InsertProfile(ctx context.Context, p NewProfile) (domain.Profile, error)
}

// History fetches past messages.
type History interface {
	// RecentMessages returns up to limit messages of the scope, newest first.
	RecentMessages(ctx context.Context, scope domain.Scope, me string, limit int) ([]domain.Message, error)
}

// Writer persists messages.
type Writer interface {
	// InsertMessage persists m and returns the stored record.
	InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	// MarkRead marks every message from peer to me as read.
	MarkRead(ctx context.Context, me, peer string) error
}

// Presence drives the online flags.
type Presence interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	// Touch refreshes last activity and the online flag of userID.
	Touch(ctx context.Context, userID string) error
	CleanupOffline(ctx context.Context) error
	// OnlineSnapshot returns users flagged online with activity after since.
	OnlineSnapshot(ctx context.Context, since time.Time) ([]domain.PresenceEntry, error)
}

// SubscriptionStatus is the state reported by a push channel.
type SubscriptionStatus string

const (
	StatusSubscribed   SubscriptionStatus = "SUBSCRIBED"
	StatusChannelError SubscriptionStatus = "CHANNEL_ERROR"
	StatusTimedOut     SubscriptionStatus = "TIMED_OUT"
	StatusClosed       SubscriptionStatus = "CLOSED"
)

// Subscription is a handle to a live push channel.
type Subscription interface {
	Unsubscribe() error
}

// MessageHandler receives inserted messages. OnStatus may be nil.
type MessageHandler struct {
	OnMessage func(domain.Message)
	OnStatus  func(SubscriptionStatus)
}

// PresenceHandler receives online-flag transitions. OnStatus may be nil.
type PresenceHandler struct {
	OnTransition func(domain.PresenceTransition)
	OnStatus     func(SubscriptionStatus)
}

// Push delivers newly inserted records. Delivery is at-least-once and not
// ordered relative to fetches or polls.
type Push interface {
	SubscribeMessages(ctx context.Context, scope domain.Scope, me string, h MessageHandler) (Subscription, error)
	SubscribePresence(ctx context.Context, h PresenceHandler) (Subscription, error)
}

// Backend is the full hosted service.
type Backend interface {
	Auth
	Profiles
	History
	Writer
	Presence
	Push
}
