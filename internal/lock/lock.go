// Package lock keeps two nyx processes from driving the same account at once.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside an account directory.
const FileName = "LOCK"

// HeldError is returned when another process holds the account lock.
type HeldError struct {
	PID     int
	Program string
	Path    string
}

func (e *HeldError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("account is in use by %s (PID %d, %s)", e.Program, e.PID, e.Path)
	}
	return fmt.Sprintf("account is in use by PID %d (%s)", e.PID, e.Path)
}

// Lock is an acquired account lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on accountDir for program (e.g. "nyx").
// Returns HeldError if another process already holds it.
func Acquire(accountDir, program string) (*Lock, error) {
	lockPath := filepath.Join(accountDir, FileName)

	if err := os.MkdirAll(accountDir, 0700); err != nil {
		return nil, fmt.Errorf("create account dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(lockPath)
		_ = f.Close()
		held := &HeldError{Path: lockPath}
		held.PID, held.Program = parse(string(data))
		return nil, held
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nprogram=%s\ntime=%s\n", os.Getpid(), program, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before closing so no stale file is left behind.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func parse(content string) (pid int, program string) {
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ = strconv.Atoi(after)
		}
		if after, ok := strings.CutPrefix(line, "program="); ok {
			program = after
		}
	}
	return pid, program
}
