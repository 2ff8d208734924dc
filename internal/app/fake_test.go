package app

import (
	"context"
	"sync"
	"time"

	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/supabase"
)

// fakeBackend answers every call of the interactive session in memory.
type fakeBackend struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	online   map[string]bool
	signedIn bool
	inserted []domain.Message
	subs     int
	unsubs   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profiles: map[string]domain.Profile{
			"me":   {ID: "me", Name: "Nyx 7", Number: 7},
			"peer": {ID: "peer", Name: "Nyx 3", Number: 3},
		},
		online: map[string]bool{},
	}
}

func (f *fakeBackend) CurrentUser(context.Context) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signedIn {
		return domain.User{}, backend.ErrNotAuthenticated
	}
	return domain.User{ID: "me", Email: "me@nyx.test"}, nil
}

func (f *fakeBackend) SignIn(_ context.Context, email, _ string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn = true
	return domain.User{ID: "me", Email: email}, nil
}

func (f *fakeBackend) SignUp(context.Context, string, string, string) (domain.User, error) {
	return domain.User{ID: "me"}, nil
}

func (f *fakeBackend) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn = false
	return nil
}

func (f *fakeBackend) StoredSession(context.Context) (supabase.Session, error) {
	return supabase.Session{}, supabase.ErrNoSession
}

func (f *fakeBackend) Profile(_ context.Context, id string) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return domain.Profile{}, backend.ErrProfileMissing
	}
	return p, nil
}

func (f *fakeBackend) ProfileByNumber(_ context.Context, n int) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Number == n {
			return p, nil
		}
	}
	return domain.Profile{}, backend.ErrProfileMissing
}

func (f *fakeBackend) ListUsers(context.Context) ([]domain.PresenceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PresenceEntry
	for _, p := range f.profiles {
		out = append(out, domain.PresenceEntry{UserID: p.ID, Name: p.Name, Number: p.Number})
	}
	return out, nil
}

func (f *fakeBackend) CreateNyxProfile(context.Context, string, string, string) (string, error) {
	return "Nyx 7", nil
}

func (f *fakeBackend) LastNyxNumber(context.Context) (int, error) { return 7, nil }

func (f *fakeBackend) InsertProfile(_ context.Context, p backend.NewProfile) (domain.Profile, error) {
	return domain.Profile{ID: p.UserID, Name: p.Name, Number: p.Number}, nil
}

func (f *fakeBackend) RecentMessages(context.Context, domain.Scope, string, int) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeBackend) InsertMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, m)
	m.ID = "srv-" + m.LocalID
	return m, nil
}

func (f *fakeBackend) MarkRead(context.Context, string, string) error { return nil }

func (f *fakeBackend) SubscribeMessages(context.Context, domain.Scope, string, backend.MessageHandler) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	return fakeSub{f}, nil
}

func (f *fakeBackend) SubscribePresence(context.Context, backend.PresenceHandler) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	return fakeSub{f}, nil
}

func (f *fakeBackend) OnlineSnapshot(context.Context, time.Time) ([]domain.PresenceEntry, error) {
	return nil, nil
}

func (f *fakeBackend) SetOnline(_ context.Context, id string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[id] = online
	return nil
}

func (f *fakeBackend) Touch(context.Context, string) error { return nil }

func (f *fakeBackend) CleanupOffline(context.Context) error { return nil }

func (f *fakeBackend) isOnline(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[id]
}

func (f *fakeBackend) counts() (subs, unsubs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs, f.unsubs
}

type fakeSub struct{ f *fakeBackend }

func (s fakeSub) Unsubscribe() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.unsubs++
	return nil
}
