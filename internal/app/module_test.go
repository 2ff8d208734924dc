package app

import (
	"errors"
	"os"
	"testing"

	"github.com/nyx-chat/nyx/internal/config"
	"github.com/nyx-chat/nyx/internal/lock"
	"github.com/nyx-chat/nyx/internal/workspace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func testParams(t *testing.T) Params {
	t.Helper()
	t.Setenv(workspace.HomeEnv, t.TempDir())
	cfg := config.Default()
	cfg.BackendURL = "https://nyx.invalid"
	cfg.AnonKey = "anon"
	return Params{Account: "main", Program: "nyx-test", Config: cfg}
}

func TestModuleLifecycle(t *testing.T) {
	p := testParams(t)

	var s *Session
	app := fxtest.New(t, Module(p), fx.Populate(&s))
	app.RequireStart()
	if s == nil {
		t.Fatal("session not populated")
	}
	if _, ok := s.Account(); ok {
		t.Error("session signed in without credentials")
	}
	for _, path := range []string{workspace.DBPath(p.Account), workspace.LockPath(p.Account), workspace.LogPath(p.Account)} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("stat %s: %v", path, err)
		}
	}

	app.RequireStop()

	lk, err := lock.Acquire(workspace.Dir(p.Account), "nyxctl")
	if err != nil {
		t.Fatalf("lock not released on stop: %v", err)
	}
	_ = lk.Release()
}

func TestModuleRefusesHeldAccount(t *testing.T) {
	p := testParams(t)
	if err := workspace.EnsureDir(p.Account); err != nil {
		t.Fatal(err)
	}
	lk, err := lock.Acquire(workspace.Dir(p.Account), "nyx")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	var s *Session
	app := fxtest.New(t, Module(p), fx.Populate(&s))
	var held *lock.HeldError
	if err := app.Err(); !errors.As(err, &held) {
		t.Fatalf("err = %v, want HeldError", app.Err())
	}
	if held.Program != "nyx" {
		t.Errorf("holder = %q, want nyx", held.Program)
	}
}
