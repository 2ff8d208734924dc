package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable wraps every failed remote call.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNotAuthenticated means there is no signed-in identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrProfileMissing means the identity has no profile record.
	ErrProfileMissing = errors.New("profile not found")
)

// Unavailable wraps err as ErrBackendUnavailable for the named operation.
// Errors that already carry one of the sentinels are only annotated.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrProfileMissing) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}
