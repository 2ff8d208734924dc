// Package app assembles the client from its parts with fx.
package app

import (
	"context"
	"errors"

	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/config"
	"github.com/nyx-chat/nyx/internal/lock"
	"github.com/nyx-chat/nyx/internal/logging"
	"github.com/nyx-chat/nyx/internal/presence"
	"github.com/nyx-chat/nyx/internal/store"
	"github.com/nyx-chat/nyx/internal/supabase"
	"github.com/nyx-chat/nyx/internal/workspace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	Account string
	// Program names the binary holding the account lock.
	Program string
	Config  *config.Config
	// Console mirrors warnings to stderr; the TUI leaves it off.
	Console bool
	Debug   bool
}

// Module returns the fx module composing every provider and lifecycle hook.
func Module(p Params) fx.Option {
	return fx.Module("nyx",
		fx.Supply(p, p.Config),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideClient,
			provideAuth,
			provideChats,
			provideHeartbeat,
			provideSession,
		),
		fx.Invoke(registerLifecycle),
	)
}

// WithLogger routes fx's own events into the zap logger.
func WithLogger() fx.Option {
	return fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	})
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := workspace.EnsureDir(p.Account); err != nil {
		return nil, err
	}
	return logging.New(workspace.LogPath(p.Account), p.Account, logging.Options{Console: p.Console, Debug: p.Debug})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring account lock", zap.String("account", p.Account))
	l, err := lock.Acquire(workspace.Dir(p.Account), p.Program)
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

// provideStore depends on the lock so nyx.db is only opened by its holder.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := workspace.DBPath(p.Account)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, db *store.DB, logger *zap.Logger) (*supabase.Client, error) {
	return supabase.New(supabase.Config{
		URL:            cfg.BackendURL,
		AnonKey:        cfg.AnonKey,
		RequestTimeout: cfg.RequestTimeout.Duration,
	}, db, logger.Named("supabase"))
}

func provideAuth(c *supabase.Client, db *store.DB, logger *zap.Logger) *auth.Service {
	return auth.NewService(c, db, logger)
}

func provideChats(cfg *config.Config, c *supabase.Client, b *bus.Bus, logger *zap.Logger) *chat.Manager {
	return chat.NewManager(c, b, logger.Named("chat"), chat.Config{
		HistoryLimit: cfg.HistoryLimit,
		RoomPoll:     cfg.RoomPoll.Duration,
		PrivatePoll:  cfg.PrivatePoll.Duration,
	})
}

func provideHeartbeat(cfg *config.Config, c *supabase.Client, logger *zap.Logger) *presence.Heartbeat {
	return presence.NewHeartbeat(c, cfg.Heartbeat.Duration, cfg.Cleanup.Duration, logger.Named("heartbeat"))
}

func provideSession(cfg *config.Config, c *supabase.Client, a *auth.Service, m *chat.Manager, h *presence.Heartbeat, b *bus.Bus, logger *zap.Logger) *Session {
	return NewSession(cfg, c, a, m, h, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, s *Session, c *supabase.Client, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var errs []error
			if err := s.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
			if err := db.Close(); err != nil {
				errs = append(errs, err)
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			err := errors.Join(errs...)
			if err != nil {
				logger.Warn("shutdown finished with errors", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return err
		},
	})
}
