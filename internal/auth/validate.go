package auth

import "strings"

// ValidationError is a form input problem found before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateLogin checks the login form.
func ValidateLogin(email, password string) error {
	if !strings.Contains(email, "@") {
		return invalid("email", "Please enter a valid email address")
	}
	if password == "" {
		return invalid("password", "Please enter your password")
	}
	return nil
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Confirm  string
}

// ValidateRegistration checks the registration form. The first problem wins.
func ValidateRegistration(in RegisterInput) error {
	if len([]rune(strings.TrimSpace(in.FullName))) < 2 {
		return invalid("full_name", "Full name must be at least 2 characters")
	}
	if !strings.Contains(in.Email, "@") {
		return invalid("email", "Please enter a valid email address")
	}
	if in.Password != in.Confirm {
		return invalid("confirm", "Passwords do not match")
	}
	if len(in.Password) < 6 {
		return invalid("password", "Password must be at least 6 characters")
	}
	return nil
}
