package chat

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
)

type fakeBackend struct {
	mu sync.Mutex

	history     map[string][]domain.Message
	historyErr  error
	historyGate chan struct{}

	insertErr  error
	insertGate chan struct{}
	inserted   []domain.Message
	nextID     int

	markReads []string

	snapshot    []domain.PresenceEntry
	snapshotErr error

	msgHandlers  []backend.MessageHandler
	presHandlers []backend.PresenceHandler
	unsubscribed int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{history: make(map[string][]domain.Message), nextID: 1000}
}

func (f *fakeBackend) RecentMessages(ctx context.Context, scope domain.Scope, _ string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	gate := f.historyGate
	f.mu.Unlock()
	if gate != nil {
		// A late response still carries data after the caller gave up.
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	rows := f.history[scope.String()]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]domain.Message(nil), rows...), nil
}

func (f *fakeBackend) InsertMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	f.mu.Lock()
	gate := f.insertGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return domain.Message{}, f.insertErr
	}
	f.nextID++
	m.ID = strconv.Itoa(f.nextID)
	m.Pending = false
	m.LocalID = ""
	f.inserted = append(f.inserted, m)
	return m, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, _, peer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads = append(f.markReads, peer)
	return nil
}

func (f *fakeBackend) OnlineSnapshot(context.Context, time.Time) ([]domain.PresenceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return append([]domain.PresenceEntry(nil), f.snapshot...), nil
}

func (f *fakeBackend) SubscribeMessages(_ context.Context, _ domain.Scope, _ string, h backend.MessageHandler) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgHandlers = append(f.msgHandlers, h)
	return fakeSub{f}, nil
}

func (f *fakeBackend) SubscribePresence(_ context.Context, h backend.PresenceHandler) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presHandlers = append(f.presHandlers, h)
	return fakeSub{f}, nil
}

func (f *fakeBackend) lastMessageHandler() backend.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgHandlers[len(f.msgHandlers)-1]
}

func (f *fakeBackend) lastPresenceHandler() backend.PresenceHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presHandlers[len(f.presHandlers)-1]
}

func (f *fakeBackend) insertedMessages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.inserted...)
}

func (f *fakeBackend) markReadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.markReads...)
}

func (f *fakeBackend) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeSub struct{ f *fakeBackend }

func (s fakeSub) Unsubscribe() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.unsubscribed++
	return nil
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
