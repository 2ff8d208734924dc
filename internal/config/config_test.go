package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultAccount = "work"
	cfg.BackendURL = "https://abc.supabase.co"
	cfg.RoomPoll = D(7 * time.Second)
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultAccount != "work" {
		t.Errorf("DefaultAccount = %q, want %q", loaded.DefaultAccount, "work")
	}
	if loaded.RoomPoll.Duration != 7*time.Second {
		t.Errorf("RoomPoll = %s, want 7s", loaded.RoomPoll)
	}
	if loaded.BackendURL != "https://abc.supabase.co" {
		t.Errorf("BackendURL = %q", loaded.BackendURL)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "backend_url = \"https://x.supabase.co\"\nprivate_poll = \"45s\"\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PrivatePoll.Duration != 45*time.Second {
		t.Errorf("PrivatePoll = %s, want 45s", cfg.PrivatePoll)
	}
	if cfg.RoomPoll.Duration != 10*time.Second {
		t.Errorf("RoomPoll = %s, want default 10s", cfg.RoomPoll)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`heartbeat = "soon"`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for bad duration")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestResolveWithoutFileUsesEnv(t *testing.T) {
	t.Setenv("NYX_BACKEND_URL", "https://env.supabase.co")
	t.Setenv("NYX_ANON_KEY", "anon-env")
	t.Setenv("NYX_ROOM_POLL", "3s")

	cfg, err := Resolve(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackendURL != "https://env.supabase.co" || cfg.AnonKey != "anon-env" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RoomPoll.Duration != 3*time.Second {
		t.Errorf("RoomPoll = %s, want 3s", cfg.RoomPoll)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_account = \"file\"\nanon_key = \"from-file\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NYX_ACCOUNT", "env")

	cfg, err := Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultAccount != "env" {
		t.Errorf("DefaultAccount = %q, want env", cfg.DefaultAccount)
	}
	if cfg.AnonKey != "from-file" {
		t.Errorf("AnonKey = %q, want from-file", cfg.AnonKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("NYX_ANON_KEY=dotenv-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Registers cleanup for the variable the .env file sets.
	t.Setenv("NYX_ANON_KEY", "")
	os.Unsetenv("NYX_ANON_KEY")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("NYX_ANON_KEY"); got != "dotenv-key" {
		t.Errorf("NYX_ANON_KEY = %q, want dotenv-key", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error without backend settings")
	}
	for _, want := range []string{"backend_url", "anon_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg.BackendURL = "https://abc.supabase.co"
	cfg.AnonKey = "anon"
	cfg.Heartbeat = D(0)
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "heartbeat") {
		t.Errorf("Validate() = %v, want heartbeat error", err)
	}
}
