package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/presence"
	"github.com/nyx-chat/nyx/internal/status"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is the number of messages fetched when a scope opens.
const DefaultHistoryLimit = 50

const maxNotices = 20

var (
	// ErrDetached is returned by operations on a state whose scope was closed.
	ErrDetached = errors.New("chat scope detached")
	// ErrEmptyDraft is returned when a draft has no text.
	ErrEmptyDraft = errors.New("message is empty")
)

// Store is the backend surface a State reads from and writes to.
type Store interface {
	backend.History
	backend.Writer
}

// Draft is user-authored text waiting to be sent.
type Draft struct {
	Body string
	Kind domain.Kind // defaults to text
}

// Notice is a transient user-visible message.
type Notice struct {
	Scope string
	Text  string
	Err   error
}

// Incoming is the payload of a chat.incoming event.
type Incoming struct {
	Scope   string
	Message domain.Message
}

// Options tunes a State. Zero values select defaults.
type Options struct {
	HistoryLimit int
	Now          func() time.Time
}

// State is the message log and presence set of one open scope.
// All methods are safe for concurrent use. Network calls are never made
// while the lock is held, and every completion is dropped once the state
// is detached.
type State struct {
	mu sync.Mutex

	scope   domain.Scope
	me      domain.Profile
	store   Store
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
	limit   int

	log         []domain.Message
	seen        map[string]struct{}
	notices     []Notice
	roster      *presence.Roster
	lastLocalID int64

	inflight sync.WaitGroup
}

// NewState creates the state for scope, owned by the signed-in profile me.
func NewState(scope domain.Scope, me domain.Profile, store Store, b *bus.Bus, logger *zap.Logger, opts Options) *State {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &State{
		scope:   scope,
		me:      me,
		store:   store,
		machine: status.NewMachine(scope.String(), b),
		bus:     b,
		logger:  logger.With(zap.String("scope", scope.String())),
		now:     opts.Now,
		limit:   opts.HistoryLimit,
		seen:    make(map[string]struct{}),
		roster:  presence.NewRoster(),
	}
}

// Scope returns the scope the state is bound to.
func (s *State) Scope() domain.Scope { return s.scope }

// Me returns the local profile.
func (s *State) Me() domain.Profile { return s.me }

// Status returns the lifecycle state.
func (s *State) Status() status.State { return s.machine.Current() }

// LoadHistory fetches the most recent messages of the scope and places them,
// oldest first, ahead of anything that arrived while loading. On failure the
// history stays empty, the state still goes live and a notice is recorded.
func (s *State) LoadHistory(ctx context.Context) ([]domain.Message, error) {
	s.mu.Lock()
	err := s.machine.Transition(status.Loading)
	s.mu.Unlock()
	if err != nil {
		if s.machine.Is(status.Detached) {
			return nil, ErrDetached
		}
		return nil, fmt.Errorf("load history: %w", err)
	}

	rows, fetchErr := s.store.RecentMessages(ctx, s.scope, s.me.ID, s.limit)

	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		s.logger.Debug("discarding history for detached scope", zap.Int("count", len(rows)))
		return nil, ErrDetached
	}
	if fetchErr != nil {
		_ = s.machine.Transition(status.Live)
		s.mu.Unlock()
		err := backend.Unavailable("load history", fetchErr)
		s.logger.Error("failed to load history", zap.Error(err))
		s.notify("Failed to load messages", err)
		return nil, err
	}

	history := make([]domain.Message, 0, len(rows))
	inHistory := make(map[string]struct{}, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		m := rows[i]
		if _, dup := inHistory[m.ID]; dup && m.ID != "" {
			continue
		}
		inHistory[m.ID] = struct{}{}
		history = append(history, m)
	}

	merged := slices.Clone(history)
	for _, m := range s.log {
		if _, dup := inHistory[m.ID]; dup {
			continue
		}
		merged = append(merged, m)
	}
	s.log = merged
	s.seen = make(map[string]struct{}, len(merged))
	for _, m := range merged {
		s.seen[m.ID] = struct{}{}
	}
	_ = s.machine.Transition(status.Live)
	s.mu.Unlock()

	s.logger.Info("history loaded", zap.Int("count", len(history)))
	s.publishLog()
	return history, nil
}

// AppendOptimistic appends the draft at once and persists it in the
// background. A failed write removes exactly that entry again and records
// a notice; a successful one confirms the server identifier.
func (s *State) AppendOptimistic(ctx context.Context, d Draft) (domain.Message, error) {
	kind := d.Kind
	if kind == "" {
		kind = domain.KindText
	}
	body := strings.TrimSpace(d.Body)
	if body == "" {
		return domain.Message{}, ErrEmptyDraft
	}

	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		return domain.Message{}, ErrDetached
	}
	now := s.now()
	m := domain.Message{
		ID:             strconv.FormatInt(s.nextLocalID(now), 10),
		LocalID:        uuid.NewString(),
		SenderID:       s.me.ID,
		SenderName:     s.me.Name,
		SenderNumber:   s.me.Number,
		Body:           body,
		Kind:           kind,
		CreatedAt:      now,
		ReceiverID:     s.scope.PeerID,
		ReceiverName:   s.scope.PeerName,
		ReceiverNumber: s.scope.PeerNumber,
		Pending:        true,
	}
	s.log = append(s.log, m)
	s.seen[m.ID] = struct{}{}
	s.inflight.Add(1)
	s.mu.Unlock()

	s.publishLog()
	go s.persist(context.WithoutCancel(ctx), m)
	return m, nil
}

// nextLocalID returns the current time in milliseconds, bumped past the
// previous temporary id. Must be called with s.mu held.
func (s *State) nextLocalID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastLocalID {
		id = s.lastLocalID + 1
	}
	s.lastLocalID = id
	return id
}

func (s *State) persist(ctx context.Context, m domain.Message) {
	defer s.inflight.Done()

	stored, err := s.store.InsertMessage(ctx, m)

	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		return
	}
	idx := s.indexOfLocal(m.LocalID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log = slices.Delete(s.log, idx, idx+1)
		delete(s.seen, m.ID)
		s.mu.Unlock()

		err = backend.Unavailable("send message", err)
		s.logger.Error("failed to send message", zap.String("local_id", m.LocalID), zap.Error(err))
		s.publishLog()
		s.notify("Failed to send message", err)
		return
	}

	entry := s.log[idx]
	entry.Pending = false
	if stored.ID != "" && stored.ID != entry.ID {
		delete(s.seen, entry.ID)
		if _, dup := s.seen[stored.ID]; dup {
			// The confirmed record is already in the log.
			s.log = slices.Delete(s.log, idx, idx+1)
			s.mu.Unlock()
			s.publishLog()
			return
		}
		entry.ID = stored.ID
		s.seen[entry.ID] = struct{}{}
	}
	if !stored.CreatedAt.IsZero() {
		entry.CreatedAt = stored.CreatedAt
	}
	s.log[idx] = entry
	s.mu.Unlock()

	s.logger.Debug("message confirmed", zap.String("local_id", m.LocalID), zap.String("id", entry.ID))
	s.publishLog()
}

func (s *State) indexOfLocal(localID string) int {
	return slices.IndexFunc(s.log, func(m domain.Message) bool { return m.LocalID == localID })
}

// MergePushed applies a pushed record that belongs to the scope and was
// not sent by the local user. Applying the same record twice is a no-op.
func (s *State) MergePushed(m domain.Message) bool {
	if m.SenderID == s.me.ID || m.ID == "" {
		return false
	}
	if s.scope.IsPrivate() {
		if !m.Involves(s.me.ID, s.scope.PeerID) {
			return false
		}
	} else if m.IsPrivate() {
		return false
	}

	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.seen[m.ID]; dup {
		s.mu.Unlock()
		return false
	}
	s.log = append(s.log, m)
	s.seen[m.ID] = struct{}{}
	s.mu.Unlock()

	s.publishLog()
	s.bus.Emit(bus.KindChatIncoming, Incoming{Scope: s.scope.String(), Message: m})
	if s.scope.IsPrivate() && m.ReceiverID == s.me.ID {
		s.MarkRead(s.scope.PeerID)
	}
	return true
}

// ReconcilePresence replaces the presence set with a polled snapshot.
func (s *State) ReconcilePresence(rows []domain.PresenceEntry) {
	if s.machine.Is(status.Detached) {
		return
	}
	s.roster.Replace(rows)
	s.bus.Emit(bus.KindPresenceChanged, s.scope.String())
}

// ApplyPresence folds a pushed online-flag transition into the presence
// set and reports whether membership changed. In the public room another
// user's change is announced in the log only when the row's own online flag
// flipped; heartbeat rows and rows without a prior flag only move the set.
func (s *State) ApplyPresence(t domain.PresenceTransition) bool {
	if s.machine.Is(status.Detached) {
		return false
	}
	changed := s.roster.Apply(t)
	if !changed {
		return false
	}
	s.bus.Emit(bus.KindPresenceChanged, s.scope.String())
	if !s.scope.IsPrivate() && t.Entry.UserID != s.me.ID && t.WasOnline != t.Entry.Online {
		name := t.Entry.Name
		if name == "" {
			name = "Unknown Nyx"
		}
		verb := "left"
		if t.Entry.Online {
			verb = "entered"
		}
		s.AppendSystem(fmt.Sprintf("%s has %s %s 🌊", name, verb, domain.RoomName))
	}
	return true
}

// Online returns the fresh online entries.
func (s *State) Online(now time.Time) []domain.PresenceEntry {
	return s.roster.Online(now)
}

// PeerOnline reports whether the private-chat peer is online.
func (s *State) PeerOnline(now time.Time) bool {
	return s.scope.IsPrivate() && s.roster.IsOnline(s.scope.PeerID, now)
}

// MarkRead marks the peer's messages to the local user as read. The call
// runs in the background and failures are only logged.
func (s *State) MarkRead(peerID string) {
	if !s.scope.IsPrivate() || peerID == "" {
		return
	}
	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		if err := s.store.MarkRead(context.Background(), s.me.ID, peerID); err != nil {
			s.logger.Warn("failed to mark messages read", zap.String("peer_id", peerID), zap.Error(err))
		}
	}()
}

// Announce persists a message without showing it locally. Own pushes are
// suppressed, so the author never sees it.
func (s *State) Announce(ctx context.Context, d Draft) {
	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	m := domain.Message{
		SenderID:       s.me.ID,
		SenderName:     s.me.Name,
		SenderNumber:   s.me.Number,
		Body:           d.Body,
		Kind:           d.Kind,
		CreatedAt:      s.now(),
		ReceiverID:     s.scope.PeerID,
		ReceiverName:   s.scope.PeerName,
		ReceiverNumber: s.scope.PeerNumber,
	}
	go func() {
		defer s.inflight.Done()
		if _, err := s.store.InsertMessage(context.WithoutCancel(ctx), m); err != nil {
			s.logger.Warn("failed to announce", zap.String("kind", string(m.Kind)), zap.Error(err))
		}
	}()
}

// AppendSystem appends a local-only system line.
func (s *State) AppendSystem(text string) {
	s.mu.Lock()
	if s.machine.Is(status.Detached) {
		s.mu.Unlock()
		return
	}
	now := s.now()
	m := domain.Message{
		ID:        "sys-" + uuid.NewString(),
		Body:      text,
		Kind:      domain.KindSystem,
		CreatedAt: now,
	}
	s.log = append(s.log, m)
	s.seen[m.ID] = struct{}{}
	s.mu.Unlock()

	s.publishLog()
}

// Messages returns a copy of the log, oldest first.
func (s *State) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.log)
}

// Notices returns the most recent notices, oldest first.
func (s *State) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notices)
}

// Detach ends the scope. Later completions are discarded.
func (s *State) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Is(status.Detached) {
		return
	}
	_ = s.machine.Transition(status.Detached)
}

// Wait blocks until background writes and read receipts have completed.
func (s *State) Wait() {
	s.inflight.Wait()
}

func (s *State) notify(text string, err error) {
	n := Notice{Scope: s.scope.String(), Text: text, Err: err}
	s.mu.Lock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = slices.Delete(s.notices, 0, len(s.notices)-maxNotices)
	}
	s.mu.Unlock()
	s.bus.Emit(bus.KindChatNotice, n)
}

func (s *State) publishLog() {
	s.bus.Emit(bus.KindChatLog, s.scope.String())
}
