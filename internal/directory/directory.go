// Package directory lists every other user with an online indicator.
package directory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/presence"
	"go.uber.org/zap"
)

// DefaultPoll is the online snapshot interval.
const DefaultPoll = 10 * time.Second

// Backend is what the directory reads.
type Backend interface {
	ListUsers(ctx context.Context) ([]domain.PresenceEntry, error)
	OnlineSnapshot(ctx context.Context, since time.Time) ([]domain.PresenceEntry, error)
	SubscribePresence(ctx context.Context, h backend.PresenceHandler) (backend.Subscription, error)
}

// Entry is a directory row as shown to the user.
type Entry struct {
	domain.PresenceEntry
	IsOnline bool
}

// Directory keeps the user list of one signed-in user.
type Directory struct {
	b        Backend
	bus      *bus.Bus
	logger   *zap.Logger
	me       string
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	users map[string]domain.PresenceEntry
}

// New creates a directory for me. interval <= 0 uses DefaultPoll.
func New(b Backend, eb *bus.Bus, logger *zap.Logger, me string, interval time.Duration) *Directory {
	if interval <= 0 {
		interval = DefaultPoll
	}
	return &Directory{
		b:        b,
		bus:      eb,
		logger:   logger.Named("directory"),
		me:       me,
		interval: interval,
		now:      time.Now,
		users:    make(map[string]domain.PresenceEntry),
	}
}

// Load replaces the list with every profile except me.
func (d *Directory) Load(ctx context.Context) error {
	rows, err := d.b.ListUsers(ctx)
	if err != nil {
		return backend.Unavailable("load users", err)
	}
	next := make(map[string]domain.PresenceEntry, len(rows))
	for _, r := range rows {
		if r.UserID != d.me {
			next[r.UserID] = r
		}
	}
	d.mu.Lock()
	d.users = next
	d.mu.Unlock()
	d.publish()
	return nil
}

// RefreshOnline merges the current online snapshot. Users in the snapshot
// take its values; known users missing from it are flagged offline.
func (d *Directory) RefreshOnline(ctx context.Context) error {
	rows, err := d.b.OnlineSnapshot(ctx, d.now().Add(-presence.FreshnessWindow))
	if err != nil {
		return backend.Unavailable("load online users", err)
	}
	fresh := make(map[string]domain.PresenceEntry, len(rows))
	for _, r := range rows {
		if r.UserID != d.me {
			fresh[r.UserID] = r
		}
	}

	d.mu.Lock()
	for id, u := range d.users {
		if _, ok := fresh[id]; !ok && u.Online {
			u.Online = false
			d.users[id] = u
		}
	}
	for id, r := range fresh {
		d.users[id] = r
	}
	d.mu.Unlock()
	d.publish()
	return nil
}

// Apply folds a pushed profile update into the list.
func (d *Directory) Apply(t domain.PresenceTransition) {
	if t.Entry.UserID == "" || t.Entry.UserID == d.me {
		return
	}
	d.mu.Lock()
	u, ok := d.users[t.Entry.UserID]
	if ok {
		u.Online = t.Entry.Online
		if !t.Entry.LastSeen.IsZero() {
			u.LastSeen = t.Entry.LastSeen
		}
		if t.Entry.Name != "" {
			u.Name, u.Number, u.Status = t.Entry.Name, t.Entry.Number, t.Entry.Status
		}
	} else {
		u = t.Entry
	}
	d.users[u.UserID] = u
	d.mu.Unlock()
	d.publish()
}

// Entries returns the list, online first, then by last activity.
func (d *Directory) Entries(now time.Time) []Entry {
	d.mu.Lock()
	out := make([]Entry, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, Entry{PresenceEntry: u, IsOnline: presence.IsOnline(u, now)})
	}
	d.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if a.IsOnline != b.IsOnline {
			if a.IsOnline {
				return -1
			}
			return 1
		}
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return a.Number - b.Number
	})
	return out
}

// Lookup finds a listed user by Nyx number.
func (d *Directory) Lookup(number int) (domain.PresenceEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Number == number {
			return u, true
		}
	}
	return domain.PresenceEntry{}, false
}

// Run loads the list, follows pushed profile updates and polls the online
// snapshot until ctx is cancelled.
func (d *Directory) Run(ctx context.Context) error {
	if err := d.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		d.logger.Warn("initial load failed", zap.Error(err))
	}

	sub, err := d.b.SubscribePresence(ctx, backend.PresenceHandler{OnTransition: d.Apply})
	if err != nil {
		d.logger.Warn("subscribe profile changes", zap.Error(err))
	}
	defer func() {
		if sub != nil {
			if err := sub.Unsubscribe(); err != nil {
				d.logger.Debug("unsubscribe profile changes", zap.Error(err))
			}
		}
	}()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if err := d.RefreshOnline(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Debug("refresh online users", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Directory) publish() {
	d.bus.Emit(bus.KindDirectoryChanged, d.Entries(d.now()))
}
