package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nyx-chat/nyx/internal/supabase"
)

var _ supabase.TokenStore = (*DB)(nil)

// LoadSession returns the persisted auth session, or supabase.ErrNoSession.
func (db *DB) LoadSession(ctx context.Context) (supabase.Session, error) {
	var s supabase.Session
	var expires int64
	err := db.QueryRowContext(ctx,
		`SELECT user_id, email, access_token, refresh_token, expires_at FROM auth_session WHERE id = 1`,
	).Scan(&s.UserID, &s.Email, &s.AccessToken, &s.RefreshToken, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return supabase.Session{}, supabase.ErrNoSession
	}
	if err != nil {
		return supabase.Session{}, fmt.Errorf("load session: %w", err)
	}
	if expires > 0 {
		s.ExpiresAt = time.UnixMilli(expires)
	}
	return s, nil
}

// SaveSession replaces the persisted session.
func (db *DB) SaveSession(ctx context.Context, s supabase.Session) error {
	var expires int64
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.UnixMilli()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO auth_session (id, user_id, email, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		s.UserID, s.Email, s.AccessToken, s.RefreshToken, expires, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession forgets the persisted session.
func (db *DB) ClearSession(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM auth_session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
