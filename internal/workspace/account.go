package workspace

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultAccount is used when neither the flag nor the config names one.
const DefaultAccount = "main"

// ErrInvalidName is returned for account names that cannot be a directory.
var ErrInvalidName = errors.New("invalid account name")

var accountName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Resolve picks the account: the --account flag, then default_account
// (config.toml or NYX_ACCOUNT), then "main".
func Resolve(flagOverride, configured string) string {
	switch {
	case flagOverride != "":
		return flagOverride
	case configured != "":
		return configured
	}
	return DefaultAccount
}

// ValidateName checks that name is lowercase letters, digits, '-' or '_'.
func ValidateName(name string) error {
	if !accountName.MatchString(name) {
		return fmt.Errorf("%w %q: use 1-64 of a-z, 0-9, '-' and '_'", ErrInvalidName, name)
	}
	return nil
}
