package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/domain"
	"go.uber.org/zap"
)

// ErrNotStarted is returned by Open before Start was called.
var ErrNotStarted = errors.New("chat manager not started")

// Manager keeps at most one open conversation and switches scopes.
type Manager struct {
	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger
	cfg     Config

	switchMu sync.Mutex
	mu       sync.Mutex
	me       *domain.Profile
	active   *Conversation
}

// NewManager creates a manager.
func NewManager(b Backend, eb *bus.Bus, logger *zap.Logger, cfg Config) *Manager {
	return &Manager{backend: b, bus: eb, logger: logger, cfg: cfg}
}

// Start binds the manager to the signed-in profile.
func (m *Manager) Start(me domain.Profile) {
	m.mu.Lock()
	m.me = &me
	m.mu.Unlock()
}

// Me returns the signed-in profile, if any.
func (m *Manager) Me() (domain.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.me == nil {
		return domain.Profile{}, false
	}
	return *m.me, true
}

// Open closes the active conversation and opens scope.
func (m *Manager) Open(ctx context.Context, scope domain.Scope) (*Conversation, error) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	me, prev := m.me, m.active
	m.active = nil
	m.mu.Unlock()

	if me == nil {
		return nil, ErrNotStarted
	}
	if prev != nil {
		if err := prev.Close(); err != nil {
			m.logger.Warn("closing previous conversation", zap.Error(err))
		}
	}

	conv := Open(ctx, m.backend, m.bus, m.logger, m.cfg, *me, scope)
	m.mu.Lock()
	m.active = conv
	m.mu.Unlock()
	return conv, nil
}

// Active returns the open conversation or nil.
func (m *Manager) Active() *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close closes the active conversation and forgets the profile.
func (m *Manager) Close() error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	active := m.active
	m.active, m.me = nil, nil
	m.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.Close()
}
