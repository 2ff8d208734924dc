package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/supabase"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (auth_session + profile_cache)", result.Version)
	}
	if result.Dirty {
		t.Error("schema is dirty")
	}
}

func TestLoadSessionEmpty(t *testing.T) {
	db := testDB(t)

	_, err := db.LoadSession(context.Background())
	if !errors.Is(err, supabase.ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	expires := time.UnixMilli(1_800_000_000_000)
	first := supabase.Session{UserID: "u1", Email: "a@b.c", AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires}
	if err := db.SaveSession(ctx, first); err != nil {
		t.Fatal(err)
	}

	// A refresh overwrites the single row.
	second := first
	second.AccessToken = "a2"
	second.RefreshToken = "r2"
	if err := db.SaveSession(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := db.LoadSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "u1" || got.AccessToken != "a2" || got.RefreshToken != "r2" || got.Email != "a@b.c" {
		t.Errorf("session = %+v", got)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Errorf("expires = %v, want %v", got.ExpiresAt, expires)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM auth_session`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestSessionWithoutExpiry(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SaveSession(ctx, supabase.Session{UserID: "u1", AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ExpiresAt.IsZero() {
		t.Errorf("expires = %v, want zero", got.ExpiresAt)
	}
}

func TestClearSession(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.SaveSession(ctx, supabase.Session{UserID: "u1", AccessToken: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := db.ClearSession(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadSession(ctx); !errors.Is(err, supabase.ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	// Clearing twice is fine.
	if err := db.ClearSession(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestProfileCache(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, ok, err := db.CachedProfile(ctx, "u1"); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	p := domain.Profile{ID: "u1", Name: "Nyx 7", Number: 7, StatusMessage: "drifting"}
	if err := db.CacheProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.StatusMessage = "anchored"
	if err := db.CacheProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, ok, err := db.CachedProfile(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got != p {
		t.Errorf("profile = %+v, want %+v", got, p)
	}

	if err := db.ForgetProfiles(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.CachedProfile(ctx, "u1"); ok {
		t.Error("profile still cached after ForgetProfiles")
	}
}

func TestOpenRestrictsPermissions(t *testing.T) {
	db := testDB(t)
	info, err := os.Stat(db.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}
