package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/config"
	"github.com/nyx-chat/nyx/internal/presence"
	"go.uber.org/zap/zaptest"
)

func newTestSession(t *testing.T, f *fakeBackend) (*Session, *bus.Bus) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.Default()
	cfg.DirectoryPoll = config.D(time.Hour)
	eb := bus.New()
	s := NewSession(cfg, f,
		auth.NewService(f, nil, logger),
		chat.NewManager(f, eb, logger, chat.Config{RoomPoll: time.Hour, PrivatePoll: time.Hour}),
		presence.NewHeartbeat(f, time.Hour, time.Hour, logger),
		eb, logger)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, eb
}

func TestOpenRoomRequiresAccount(t *testing.T) {
	s, _ := newTestSession(t, newFakeBackend())

	if _, err := s.OpenRoom(context.Background()); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestResumeWithoutSession(t *testing.T) {
	s, _ := newTestSession(t, newFakeBackend())

	if _, err := s.Resume(context.Background()); !errors.Is(err, backend.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if _, ok := s.Account(); ok {
		t.Error("account set after failed resume")
	}
}

func TestLoginStartsSession(t *testing.T) {
	f := newFakeBackend()
	s, _ := newTestSession(t, f)
	ctx := context.Background()

	acct, err := s.Login(ctx, "me@nyx.test", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if acct.Profile.Name != "Nyx 7" {
		t.Errorf("profile = %+v", acct.Profile)
	}
	if !f.isOnline("me") {
		t.Error("heartbeat did not flag the user online")
	}
	if s.Directory() == nil {
		t.Fatal("directory not started")
	}

	conv, err := s.OpenRoom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if conv.Scope().IsPrivate() {
		t.Error("room scope is private")
	}
	if _, err := s.Send(ctx, "hello river"); err != nil {
		t.Fatal(err)
	}
	conv.State().Wait()
}

func TestOpenPrivateResolvesNumber(t *testing.T) {
	f := newFakeBackend()
	s, _ := newTestSession(t, f)
	ctx := context.Background()
	if _, err := s.Login(ctx, "me@nyx.test", "pw"); err != nil {
		t.Fatal(err)
	}

	conv, err := s.OpenPrivate(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if sc := conv.Scope(); sc.PeerID != "peer" || sc.PeerName != "Nyx 3" {
		t.Errorf("scope = %+v", sc)
	}

	if _, err := s.OpenPrivate(ctx, 7); !errors.Is(err, ErrSelfChat) {
		t.Errorf("self chat err = %v", err)
	}
	if _, err := s.OpenPrivate(ctx, 99); !errors.Is(err, backend.ErrProfileMissing) {
		t.Errorf("unknown number err = %v", err)
	}
}

func TestLogoutReleasesEverything(t *testing.T) {
	f := newFakeBackend()
	s, eb := newTestSession(t, f)
	ended, unsub := eb.Subscribe("session.", 1)
	defer unsub()
	ctx := context.Background()

	if _, err := s.Login(ctx, "me@nyx.test", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenRoom(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatal(err)
	}

	if f.isOnline("me") {
		t.Error("user still online after logout")
	}
	if subs, unsubs := f.counts(); subs != unsubs {
		t.Errorf("subscriptions = %d, released = %d", subs, unsubs)
	}
	if _, ok := s.Account(); ok {
		t.Error("account still set")
	}
	if s.Active() != nil {
		t.Error("conversation still open")
	}
	select {
	case evt := <-ended:
		if evt.Kind != bus.KindSessionEnded {
			t.Errorf("event = %s", evt.Kind)
		}
	default:
		t.Error("no session.ended event")
	}
}
