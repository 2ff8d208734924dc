package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/config"
	"github.com/nyx-chat/nyx/internal/directory"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/presence"
	"go.uber.org/zap"
)

// ErrSelfChat is returned when asked to open a private chat with oneself.
var ErrSelfChat = errors.New("that is your own Nyx number")

// Backend is the hosted-service surface the interactive session drives.
type Backend interface {
	chat.Backend
	directory.Backend
	presence.Announcer
	ProfileByNumber(ctx context.Context, number int) (domain.Profile, error)
}

// Session is the signed-in runtime behind the terminal UI: the chat manager,
// the presence heartbeat and the user directory, all bound to one account.
type Session struct {
	cfg    *config.Config
	b      Backend
	auth   *auth.Service
	chats  *chat.Manager
	beat   *presence.Heartbeat
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.Mutex
	account *auth.Account
	dir     *directory.Directory
	stopDir context.CancelFunc
	dirDone chan struct{}
}

// NewSession wires a session. Nothing runs until an account is signed in.
func NewSession(cfg *config.Config, b Backend, authSvc *auth.Service, chats *chat.Manager, beat *presence.Heartbeat, eb *bus.Bus, logger *zap.Logger) *Session {
	return &Session{
		cfg:    cfg,
		b:      b,
		auth:   authSvc,
		chats:  chats,
		beat:   beat,
		bus:    eb,
		logger: logger.Named("session"),
	}
}

// Resume signs in with the persisted session.
func (s *Session) Resume(ctx context.Context) (auth.Account, error) {
	acct, err := s.auth.Resume(ctx)
	if err != nil {
		return auth.Account{}, err
	}
	s.begin(ctx, acct)
	return acct, nil
}

// Login signs in with email and password.
func (s *Session) Login(ctx context.Context, email, password string) (auth.Account, error) {
	acct, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return auth.Account{}, err
	}
	s.begin(ctx, acct)
	return acct, nil
}

// Register creates an account. The session starts only when the automatic
// sign-in succeeded.
func (s *Session) Register(ctx context.Context, in auth.RegisterInput) (auth.Registration, error) {
	reg, err := s.auth.Register(ctx, in)
	if err != nil {
		return auth.Registration{}, err
	}
	if !reg.ManualLogin {
		s.begin(ctx, reg.Account)
	}
	return reg, nil
}

func (s *Session) begin(ctx context.Context, acct auth.Account) {
	s.end(ctx)

	dir := directory.New(s.b, s.bus, s.logger, acct.User.ID, s.cfg.DirectoryPoll.Duration)
	dirCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.account = &acct
	s.dir = dir
	s.stopDir = stop
	s.dirDone = done
	s.mu.Unlock()

	s.chats.Start(acct.Profile)
	s.beat.Start(ctx, acct.User.ID)
	go func() {
		defer close(done)
		_ = dir.Run(dirCtx)
	}()
	s.logger.Info("session started", zap.String("user_id", acct.User.ID), zap.String("nyx_name", acct.Profile.Name))
}

// Account returns the signed-in account.
func (s *Session) Account() (auth.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return auth.Account{}, false
	}
	return *s.account, true
}

// Directory returns the user directory, or nil when signed out.
func (s *Session) Directory() *directory.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Active returns the open conversation or nil.
func (s *Session) Active() *chat.Conversation {
	return s.chats.Active()
}

// OpenRoom switches to The Cosmic River.
func (s *Session) OpenRoom(ctx context.Context) (*chat.Conversation, error) {
	if _, ok := s.Account(); !ok {
		return nil, backend.ErrNotAuthenticated
	}
	return s.chats.Open(ctx, domain.PublicScope())
}

// OpenPrivate switches to the private chat with the user holding number.
func (s *Session) OpenPrivate(ctx context.Context, number int) (*chat.Conversation, error) {
	acct, ok := s.Account()
	if !ok {
		return nil, backend.ErrNotAuthenticated
	}
	if number == acct.Profile.Number {
		return nil, ErrSelfChat
	}
	peer, err := s.lookup(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.chats.Open(ctx, domain.PrivateScope(peer))
}

func (s *Session) lookup(ctx context.Context, number int) (domain.Profile, error) {
	if dir := s.Directory(); dir != nil {
		if e, ok := dir.Lookup(number); ok {
			return domain.Profile{ID: e.UserID, Name: e.Name, Number: e.Number, StatusMessage: e.Status}, nil
		}
	}
	p, err := s.b.ProfileByNumber(ctx, number)
	if errors.Is(err, backend.ErrProfileMissing) {
		return domain.Profile{}, fmt.Errorf("no user with number %d: %w", number, err)
	}
	return p, err
}

// Send posts body to the open conversation.
func (s *Session) Send(ctx context.Context, body string) (domain.Message, error) {
	conv := s.chats.Active()
	if conv == nil {
		return domain.Message{}, errors.New("no conversation is open")
	}
	return conv.Send(ctx, body)
}

// Logout ends the session and signs out.
func (s *Session) Logout(ctx context.Context) error {
	acct, ok := s.Account()
	s.end(ctx)
	// The heartbeat already flagged the user offline.
	err := s.auth.Logout(ctx, "")
	if ok {
		s.logger.Info("signed out", zap.String("user_id", acct.User.ID))
	}
	s.bus.Emit(bus.KindSessionEnded, "logout")
	return err
}

// Shutdown ends the session without signing out. The persisted auth session
// is kept for the next start.
func (s *Session) Shutdown(ctx context.Context) error {
	return s.end(ctx)
}

func (s *Session) end(ctx context.Context) error {
	s.mu.Lock()
	active := s.account != nil
	stop, done := s.stopDir, s.dirDone
	s.account, s.dir, s.stopDir, s.dirDone = nil, nil, nil, nil
	s.mu.Unlock()

	err := s.chats.Close()
	if stop != nil {
		stop()
		<-done
	}
	s.beat.Stop(ctx)
	if active {
		s.logger.Info("session ended")
	}
	return err
}
