package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/presence"
	"go.uber.org/zap"
)

// Backend is everything an open conversation needs from the hosted service.
type Backend interface {
	Store
	backend.Push
	OnlineSnapshot(ctx context.Context, since time.Time) ([]domain.PresenceEntry, error)
}

// Config holds the per-scope timings.
type Config struct {
	HistoryLimit int
	RoomPoll     time.Duration
	PrivatePoll  time.Duration
	Now          func() time.Time
}

func (c Config) pollInterval(scope domain.Scope) time.Duration {
	if scope.IsPrivate() {
		if c.PrivatePoll > 0 {
			return c.PrivatePoll
		}
		return 30 * time.Second
	}
	if c.RoomPoll > 0 {
		return c.RoomPoll
	}
	return 10 * time.Second
}

// Conversation owns one State together with its push subscriptions and
// presence poll. Close releases all of them.
type Conversation struct {
	state   *State
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	subs      []backend.Subscription
	closeOnce sync.Once
	closeErr  error
}

// Open starts a conversation for scope. Subscription failures are not
// fatal: the conversation keeps polling and records a notice.
func Open(ctx context.Context, b Backend, eb *bus.Bus, logger *zap.Logger, cfg Config, me domain.Profile, scope domain.Scope) *Conversation {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	state := NewState(scope, me, b, eb, logger, Options{HistoryLimit: cfg.HistoryLimit, Now: now})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Conversation{
		state:   state,
		backend: b,
		logger:  state.logger,
		now:     now,
		cancel:  cancel,
	}

	msgSub, err := b.SubscribeMessages(runCtx, scope, me.ID, backend.MessageHandler{
		OnMessage: func(m domain.Message) { state.MergePushed(m) },
		OnStatus:  c.onMessageStatus,
	})
	if err != nil {
		c.logger.Error("failed to subscribe to messages", zap.Error(err))
		state.notify("Live updates unavailable", backend.Unavailable("subscribe messages", err))
	} else {
		c.subs = append(c.subs, msgSub)
	}

	presSub, err := b.SubscribePresence(runCtx, backend.PresenceHandler{
		OnTransition: func(t domain.PresenceTransition) { state.ApplyPresence(t) },
		OnStatus: func(st backend.SubscriptionStatus) {
			c.logger.Debug("presence subscription status", zap.String("status", string(st)))
		},
	})
	if err != nil {
		c.logger.Error("failed to subscribe to presence", zap.Error(err))
	} else {
		c.subs = append(c.subs, presSub)
	}

	c.wg.Add(2)
	go c.loadHistory(runCtx)
	go c.pollLoop(runCtx, cfg.pollInterval(scope))

	if !scope.IsPrivate() {
		name := me.Name
		if name == "" {
			name = "Unknown Nyx"
		}
		state.Announce(runCtx, Draft{
			Body: fmt.Sprintf("%s has entered %s 🌊", name, domain.RoomName),
			Kind: domain.KindJoin,
		})
	}

	c.logger.Info("conversation opened")
	return c
}

// State returns the conversation's session state.
func (c *Conversation) State() *State { return c.state }

// Scope returns the conversation's scope.
func (c *Conversation) Scope() domain.Scope { return c.state.Scope() }

// Send appends body optimistically and persists it in the background.
func (c *Conversation) Send(ctx context.Context, body string) (domain.Message, error) {
	return c.state.AppendOptimistic(ctx, Draft{Body: body})
}

func (c *Conversation) loadHistory(ctx context.Context) {
	defer c.wg.Done()
	if _, err := c.state.LoadHistory(ctx); err != nil {
		return
	}
	if c.state.Scope().IsPrivate() {
		c.state.MarkRead(c.state.Scope().PeerID)
	}
}

func (c *Conversation) pollLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	c.pollPresence(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.pollPresence(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conversation) pollPresence(ctx context.Context) {
	rows, err := c.backend.OnlineSnapshot(ctx, c.now().Add(-presence.FreshnessWindow))
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("presence poll failed", zap.Error(err))
		}
		return
	}
	c.state.ReconcilePresence(rows)
}

func (c *Conversation) onMessageStatus(st backend.SubscriptionStatus) {
	c.logger.Info("message subscription status", zap.String("status", string(st)))
	if c.state.Scope().IsPrivate() {
		return
	}
	switch st {
	case backend.StatusSubscribed:
		c.state.AppendSystem(fmt.Sprintf("Welcome to %s 🌊", domain.RoomName))
	case backend.StatusChannelError:
		c.state.AppendSystem(fmt.Sprintf("Connection to %s unstable ⚡", domain.RoomName))
	case backend.StatusTimedOut:
		c.state.AppendSystem(fmt.Sprintf("Connection to %s timed out ⏰", domain.RoomName))
	}
}

// Close detaches the state, stops the poll, unsubscribes and waits for
// background work. It is safe to call more than once.
func (c *Conversation) Close() error {
	c.closeOnce.Do(func() {
		c.state.Detach()
		c.cancel()

		var errs []error
		for _, sub := range c.subs {
			if err := sub.Unsubscribe(); err != nil {
				errs = append(errs, err)
			}
		}
		c.wg.Wait()
		c.state.Wait()

		c.closeErr = errors.Join(errs...)
		if c.closeErr != nil {
			c.logger.Warn("conversation closed with errors", zap.Error(c.closeErr))
		} else {
			c.logger.Info("conversation closed")
		}
	})
	return c.closeErr
}
