package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nyx-chat/nyx/internal/domain"
)

// CacheProfile remembers p so whoami works while the backend is unreachable.
func (db *DB) CacheProfile(ctx context.Context, p domain.Profile) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO profile_cache (user_id, nyx_name, nyx_number, status_message, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			nyx_name = excluded.nyx_name,
			nyx_number = excluded.nyx_number,
			status_message = excluded.status_message,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Number, p.StatusMessage, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

// CachedProfile returns the cached profile of userID. ok is false when none
// is cached.
func (db *DB) CachedProfile(ctx context.Context, userID string) (p domain.Profile, ok bool, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT user_id, nyx_name, nyx_number, status_message FROM profile_cache WHERE user_id = ?`, userID,
	).Scan(&p.ID, &p.Name, &p.Number, &p.StatusMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("load cached profile: %w", err)
	}
	return p, true, nil
}

// ForgetProfiles drops every cached profile.
func (db *DB) ForgetProfiles(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM profile_cache`); err != nil {
		return fmt.Errorf("forget profiles: %w", err)
	}
	return nil
}
