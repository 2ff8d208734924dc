// Package workspace lays out the per-account directories under ~/.nyx.
package workspace

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "NYX_HOME"

// BaseDir returns ~/.nyx, or $NYX_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nyx")
}

// Dir returns the account-specific directory.
func Dir(account string) string {
	return filepath.Join(BaseDir(), "accounts", account)
}

// LockPath returns the lock file path for an account.
func LockPath(account string) string {
	return filepath.Join(Dir(account), "LOCK")
}

// DBPath returns the app-owned nyx.db path.
func DBPath(account string) string {
	return filepath.Join(Dir(account), "nyx.db")
}

// LogDir returns the log directory for an account.
func LogDir(account string) string {
	return filepath.Join(Dir(account), "logs")
}

// LogPath returns the client log file path.
func LogPath(account string) string {
	return filepath.Join(LogDir(account), "nyx.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// DotEnvPath returns the optional .env file next to the config.
func DotEnvPath() string {
	return filepath.Join(BaseDir(), ".env")
}

// EnsureDir creates the account directory tree with proper permissions.
func EnsureDir(account string) error {
	for _, d := range []string{Dir(account), LogDir(account)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
