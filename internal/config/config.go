package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "NYX_"

// Config represents the global ~/.nyx/config.toml.
type Config struct {
	DefaultAccount string `toml:"default_account" env:"ACCOUNT"`
	BackendURL     string `toml:"backend_url" env:"BACKEND_URL"`
	AnonKey        string `toml:"anon_key" env:"ANON_KEY"`

	HistoryLimit   int      `toml:"history_limit" env:"HISTORY_LIMIT"`
	RoomPoll       Duration `toml:"room_poll" env:"ROOM_POLL"`
	PrivatePoll    Duration `toml:"private_poll" env:"PRIVATE_POLL"`
	DirectoryPoll  Duration `toml:"directory_poll" env:"DIRECTORY_POLL"`
	Heartbeat      Duration `toml:"heartbeat" env:"HEARTBEAT"`
	Cleanup        Duration `toml:"cleanup" env:"CLEANUP"`
	NoticeDuration Duration `toml:"notice_duration" env:"NOTICE_DURATION"`
	RequestTimeout Duration `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// Duration is a time.Duration written as "10s" in TOML and the environment.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in settings. BackendURL and AnonKey have no default.
func Default() *Config {
	return &Config{
		DefaultAccount: "main",
		HistoryLimit:   50,
		RoomPoll:       D(10 * time.Second),
		PrivatePoll:    D(30 * time.Second),
		DirectoryPoll:  D(10 * time.Second),
		Heartbeat:      D(2 * time.Minute),
		Cleanup:        D(5 * time.Minute),
		NoticeDuration: D(3 * time.Second),
		RequestTimeout: D(15 * time.Second),
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadDotEnv loads each existing .env file into the process environment.
// Variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any NYX_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Resolve builds the effective config: defaults, then the file at path when
// it exists, then the environment.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the backend is configured and every interval is positive.
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend_url is not set (config.toml or NYX_BACKEND_URL)"))
	} else if u, err := url.Parse(c.BackendURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url %q is not a valid url", c.BackendURL))
	}
	if c.AnonKey == "" {
		errs = append(errs, errors.New("anon_key is not set (config.toml or NYX_ANON_KEY)"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit))
	}
	for _, f := range []struct {
		name string
		d    Duration
	}{
		{"room_poll", c.RoomPoll},
		{"private_poll", c.PrivatePoll},
		{"directory_poll", c.DirectoryPoll},
		{"heartbeat", c.Heartbeat},
		{"cleanup", c.Cleanup},
		{"notice_duration", c.NoticeDuration},
		{"request_timeout", c.RequestTimeout},
	} {
		if f.d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", f.name, f.d))
		}
	}
	return errors.Join(errs...)
}
