package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Announcer is the part of the backend the heartbeat drives.
type Announcer interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	Touch(ctx context.Context, userID string) error
	CleanupOffline(ctx context.Context) error
}

// Heartbeat keeps the signed-in user's online flag fresh and periodically
// asks the backend to sweep stale users.
type Heartbeat struct {
	backend  Announcer
	logger   *zap.Logger
	interval time.Duration
	cleanup  time.Duration

	mu     sync.Mutex
	userID string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeat creates a heartbeat. Zero durations fall back to 2m and 5m.
func NewHeartbeat(b Announcer, interval, cleanup time.Duration, logger *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	return &Heartbeat{backend: b, logger: logger, interval: interval, cleanup: cleanup}
}

// Start marks userID online and begins the periodic loops. Calling Start
// while running restarts the loops for the new user.
func (h *Heartbeat) Start(ctx context.Context, userID string) {
	h.Stop(ctx)

	if err := h.backend.SetOnline(ctx, userID, true); err != nil {
		h.logger.Warn("failed to set online", zap.String("user_id", userID), zap.Error(err))
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.mu.Lock()
	h.userID = userID
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go h.loop(loopCtx, userID)
}

// Stop ends the loops and marks the user offline. Safe to call when not running.
func (h *Heartbeat) Stop(ctx context.Context) {
	h.mu.Lock()
	cancel, userID := h.cancel, h.userID
	h.cancel, h.userID = nil, ""
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	h.wg.Wait()

	if err := h.backend.SetOnline(ctx, userID, false); err != nil {
		h.logger.Warn("failed to set offline", zap.String("user_id", userID), zap.Error(err))
	}
}

// Running reports whether the loops are active.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

func (h *Heartbeat) loop(ctx context.Context, userID string) {
	defer h.wg.Done()

	touch := time.NewTicker(h.interval)
	defer touch.Stop()
	sweep := time.NewTicker(h.cleanup)
	defer sweep.Stop()

	for {
		select {
		case <-touch.C:
			if err := h.backend.Touch(ctx, userID); err != nil && ctx.Err() == nil {
				h.logger.Warn("heartbeat failed", zap.Error(err))
			}
		case <-sweep.C:
			if err := h.backend.CleanupOffline(ctx); err != nil && ctx.Err() == nil {
				h.logger.Warn("offline cleanup failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
