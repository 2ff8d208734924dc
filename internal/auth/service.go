// Package auth drives login, registration, session resume and logout against
// the hosted backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/supabase"
	"go.uber.org/zap"
)

// Backend is what the auth flows need from the hosted service.
type Backend interface {
	backend.Auth
	backend.Profiles
	SetOnline(ctx context.Context, userID string, online bool) error
	// StoredSession returns the persisted session without a network call.
	StoredSession(ctx context.Context) (supabase.Session, error)
}

// ProfileCache remembers the signed-in profile locally. store.DB implements it.
type ProfileCache interface {
	CacheProfile(ctx context.Context, p domain.Profile) error
	CachedProfile(ctx context.Context, userID string) (domain.Profile, bool, error)
	ForgetProfiles(ctx context.Context) error
}

// Account is a signed-in user with their profile.
type Account struct {
	User    domain.User
	Profile domain.Profile
	// Offline is set when the account came from local state because the
	// backend could not be reached.
	Offline bool
}

// Registration is the outcome of Register.
type Registration struct {
	User domain.User
	Name string
	// ManualLogin is set when the account exists but signing in right after
	// registration failed; the user has to log in themselves.
	ManualLogin bool
	Account     Account
}

// Service runs the auth flows.
type Service struct {
	b      Backend
	cache  ProfileCache
	logger *zap.Logger
}

// NewService creates a Service. cache may be nil.
func NewService(b Backend, cache ProfileCache, logger *zap.Logger) *Service {
	return &Service{b: b, cache: cache, logger: logger.Named("auth")}
}

// Login signs in, loads the profile and flags the user online.
func (s *Service) Login(ctx context.Context, email, password string) (Account, error) {
	if err := ValidateLogin(email, password); err != nil {
		return Account{}, err
	}
	email = NormalizeEmail(email)

	user, err := s.b.SignIn(ctx, email, password)
	if err != nil {
		return Account{}, fmt.Errorf("login failed: %w", err)
	}
	if user.ID == "" {
		return Account{}, errors.New("login failed: no session created")
	}

	acct, err := s.account(ctx, user)
	if err != nil {
		return Account{}, err
	}
	s.setOnline(ctx, user.ID, true)
	s.logger.Info("logged in", zap.String("user_id", user.ID), zap.String("nyx_name", acct.Profile.Name))
	return acct, nil
}

// Register creates the account and its Nyx profile, then tries to sign in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Registration, error) {
	if err := ValidateRegistration(in); err != nil {
		return Registration{}, err
	}
	email := NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	user, err := s.b.SignUp(ctx, email, in.Password, fullName)
	if err != nil {
		return Registration{}, fmt.Errorf("registration failed: %w", err)
	}
	if user.ID == "" {
		return Registration{}, errors.New("account creation failed")
	}

	name, err := s.b.CreateNyxProfile(ctx, user.ID, fullName, email)
	if err != nil || name == "" {
		s.logger.Warn("create_nyx_profile failed, creating profile directly", zap.Error(err))
		name, err = s.insertProfile(ctx, user.ID, fullName, email)
		if err != nil {
			return Registration{}, err
		}
	}
	reg := Registration{User: user, Name: name}

	signedIn, err := s.b.SignIn(ctx, email, in.Password)
	if err != nil {
		s.logger.Info("auto sign-in after registration failed", zap.Error(err))
		reg.ManualLogin = true
		return reg, nil
	}
	acct, err := s.account(ctx, signedIn)
	if err != nil {
		return Registration{}, err
	}
	s.setOnline(ctx, signedIn.ID, true)
	reg.Account = acct
	s.logger.Info("registered", zap.String("user_id", user.ID), zap.String("nyx_name", name))
	return reg, nil
}

func (s *Service) insertProfile(ctx context.Context, userID, fullName, email string) (string, error) {
	last, err := s.b.LastNyxNumber(ctx)
	if err != nil {
		// Numbering restarts at 1; the insert fails if that number is taken.
		s.logger.Warn("read last nyx number", zap.Error(err))
		last = 0
	}
	next := last + 1
	p, err := s.b.InsertProfile(ctx, backend.NewProfile{
		UserID:   userID,
		FullName: fullName,
		Email:    email,
		Name:     fmt.Sprintf("Nyx %d", next),
		Number:   next,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}
	return p.Name, nil
}

// Resume confirms the persisted session with the backend and loads the profile.
// Returns backend.ErrNotAuthenticated when nobody is signed in.
func (s *Service) Resume(ctx context.Context) (Account, error) {
	user, err := s.b.CurrentUser(ctx)
	if err != nil {
		return Account{}, err
	}
	return s.account(ctx, user)
}

// Whoami is Resume with a fallback to the persisted session and cached
// profile when the backend is unreachable.
func (s *Service) Whoami(ctx context.Context) (Account, error) {
	acct, err := s.Resume(ctx)
	if err == nil || !errors.Is(err, backend.ErrBackendUnavailable) || s.cache == nil {
		return acct, err
	}
	sess, serr := s.b.StoredSession(ctx)
	if serr != nil {
		return Account{}, err
	}
	p, ok, cerr := s.cache.CachedProfile(ctx, sess.UserID)
	if cerr != nil || !ok {
		return Account{}, err
	}
	return Account{User: domain.User{ID: sess.UserID, Email: sess.Email}, Profile: p, Offline: true}, nil
}

// Logout flags the user offline, signs out and forgets local state.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if userID != "" {
		s.setOnline(ctx, userID, false)
	}
	err := s.b.SignOut(ctx)
	if s.cache != nil {
		if cerr := s.cache.ForgetProfiles(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("logged out", zap.String("user_id", userID))
	return nil
}

func (s *Service) account(ctx context.Context, user domain.User) (Account, error) {
	p, err := s.b.Profile(ctx, user.ID)
	if err != nil {
		return Account{}, err
	}
	if s.cache != nil {
		if err := s.cache.CacheProfile(ctx, p); err != nil {
			s.logger.Warn("cache profile", zap.Error(err))
		}
	}
	return Account{User: user, Profile: p}, nil
}

func (s *Service) setOnline(ctx context.Context, userID string, online bool) {
	if err := s.b.SetOnline(ctx, userID, online); err != nil {
		s.logger.Warn("update online status", zap.Bool("online", online), zap.Error(err))
	}
}

// Message renders err the way the login and registration forms show it.
func Message(err error) string {
	var verr *ValidationError
	var apiErr *supabase.APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, backend.ErrProfileMissing):
		return "Profile not found. Please register again."
	case errors.Is(err, backend.ErrNotAuthenticated):
		return "Please log in to continue."
	case errors.As(err, &apiErr):
		prefix, _, _ := strings.Cut(err.Error(), ":")
		return capitalize(prefix) + ": " + apiErr.Message
	case errors.Is(err, backend.ErrBackendUnavailable):
		return "The backend could not be reached. Please try again."
	default:
		return capitalize(err.Error())
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
