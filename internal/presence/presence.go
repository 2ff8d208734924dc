package presence

import (
	"slices"
	"sync"
	"time"

	"github.com/nyx-chat/nyx/internal/domain"
)

// FreshnessWindow is how recent a user's last activity must be for the
// online flag to be trusted.
const FreshnessWindow = 5 * time.Minute

// IsOnline is the single online predicate used by every view.
func IsOnline(e domain.PresenceEntry, now time.Time) bool {
	return e.Online && now.Sub(e.LastSeen) < FreshnessWindow
}

// Roster is the set of users currently believed online.
type Roster struct {
	mu      sync.RWMutex
	entries map[string]domain.PresenceEntry
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{entries: make(map[string]domain.PresenceEntry)}
}

// Replace swaps the roster for a polled snapshot. Rows flagged offline are skipped.
func (r *Roster) Replace(rows []domain.PresenceEntry) {
	next := make(map[string]domain.PresenceEntry, len(rows))
	for _, e := range rows {
		if e.Online {
			next[e.UserID] = e
		}
	}
	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()
}

// Apply folds a pushed transition into the roster and reports whether
// online membership changed.
func (r *Roster) Apply(t domain.PresenceTransition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, had := r.entries[t.Entry.UserID]
	if t.Entry.Online {
		r.entries[t.Entry.UserID] = t.Entry
		return !had
	}
	delete(r.entries, t.Entry.UserID)
	return had
}

// Online returns the fresh online entries, most recently active first.
func (r *Roster) Online(now time.Time) []domain.PresenceEntry {
	r.mu.RLock()
	out := make([]domain.PresenceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if IsOnline(e, now) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.PresenceEntry) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})
	return out
}

// IsOnline reports whether userID is in the roster and fresh.
func (r *Roster) IsOnline(userID string, now time.Time) bool {
	r.mu.RLock()
	e, ok := r.entries[userID]
	r.mu.RUnlock()
	return ok && IsOnline(e, now)
}

// Len returns the number of entries, fresh or not.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
