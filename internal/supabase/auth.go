package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
	"go.uber.org/zap"
)

// refreshLeeway is how close to expiry an access token gets refreshed.
const refreshLeeway = time.Minute

// ErrNoSession is returned by a TokenStore that holds no session.
var ErrNoSession = errors.New("no stored session")

// Session is a signed-in auth session.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenStore persists the session between runs.
type TokenStore interface {
	LoadSession(ctx context.Context) (Session, error)
	SaveSession(ctx context.Context, s Session) error
	ClearSession(ctx context.Context) error
}

// MemoryTokens keeps the session in memory only.
type MemoryTokens struct {
	mu sync.Mutex
	s  *Session
}

func NewMemoryTokens() *MemoryTokens { return &MemoryTokens{} }

func (m *MemoryTokens) LoadSession(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return Session{}, ErrNoSession
	}
	return *m.s, nil
}

func (m *MemoryTokens) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *MemoryTokens) ClearSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

type userRow struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u userRow) toDomain() domain.User {
	return domain.User{ID: u.ID, Email: u.Email}
}

type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
	ExpiresAt    int64   `json:"expires_at"`
	User         userRow `json:"user"`
}

func (t tokenResponse) session() Session {
	s := Session{
		UserID:       t.User.ID,
		Email:        t.User.Email,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if sub, exp, err := tokenClaims(t.AccessToken); err == nil {
		if s.UserID == "" {
			s.UserID = sub
		}
		if s.ExpiresAt.IsZero() {
			s.ExpiresAt = exp
		}
	}
	return s
}

// tokenClaims reads the subject and expiry of an access token. The
// signature is not checked; the backend verifies tokens on every call.
func tokenClaims(token string) (string, time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return claims.Subject, exp, nil
}

// SignIn exchanges email and password for a session and stores it.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.User, error) {
	var resp tokenResponse
	err := c.do(ctx, "sign in", request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
		anon:   true,
	}, &resp)
	if err != nil {
		return domain.User{}, err
	}
	if err := c.storeSession(ctx, resp.session()); err != nil {
		return domain.User{}, err
	}
	c.logger.Info("signed in", zap.String("user_id", resp.User.ID))
	return resp.User.toDomain(), nil
}

// SignUp registers a new account with the full name as user metadata.
// When the project returns a session right away it is stored.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (domain.User, error) {
	var resp struct {
		tokenResponse
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	err := c.do(ctx, "sign up", request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     map[string]string{"full_name": fullName},
		},
		anon: true,
	}, &resp)
	if err != nil {
		return domain.User{}, err
	}

	user := resp.User.toDomain()
	if user.ID == "" {
		user = domain.User{ID: resp.ID, Email: resp.Email}
	}
	if resp.AccessToken != "" {
		if err := c.storeSession(ctx, resp.session()); err != nil {
			return domain.User{}, err
		}
	}
	c.logger.Info("signed up", zap.String("user_id", user.ID))
	return user, nil
}

// SignOut revokes the session and forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, "sign out", request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
	}, nil)
	if errors.Is(err, backend.ErrNotAuthenticated) {
		err = nil
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if clearErr := c.tokens.ClearSession(ctx); clearErr != nil {
		err = errors.Join(err, fmt.Errorf("clear session: %w", clearErr))
	}
	return err
}

// CurrentUser confirms the stored session with the backend.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var u userRow
	if err := c.do(ctx, "current user", request{method: http.MethodGet, path: "/auth/v1/user"}, &u); err != nil {
		return domain.User{}, err
	}
	if u.ID == "" {
		return domain.User{}, backend.ErrNotAuthenticated
	}
	return u.toDomain(), nil
}

// accessToken returns a valid access token, refreshing it when close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	s, err := c.currentSession(ctx)
	if err != nil {
		return "", err
	}
	if s.ExpiresAt.IsZero() || time.Until(s.ExpiresAt) > refreshLeeway {
		return s.AccessToken, nil
	}
	refreshed, err := c.refresh(ctx, s)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (c *Client) currentSession(ctx context.Context) (Session, error) {
	c.mu.Lock()
	cached := c.session
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	s, err := c.tokens.LoadSession(ctx)
	if errors.Is(err, ErrNoSession) {
		return Session{}, backend.ErrNotAuthenticated
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	return s, nil
}

func (c *Client) refresh(ctx context.Context, s Session) (Session, error) {
	if s.RefreshToken == "" {
		return Session{}, backend.ErrNotAuthenticated
	}
	var resp tokenResponse
	err := c.do(ctx, "refresh session", request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": s.RefreshToken},
		anon:   true,
	}, &resp)
	if err != nil {
		if IsStatus(err, http.StatusBadRequest) || errors.Is(err, backend.ErrNotAuthenticated) {
			c.logger.Warn("refresh token rejected", zap.Error(err))
			c.mu.Lock()
			c.session = nil
			c.mu.Unlock()
			_ = c.tokens.ClearSession(ctx)
			return Session{}, fmt.Errorf("refresh session: %w", backend.ErrNotAuthenticated)
		}
		return Session{}, err
	}

	next := resp.session()
	if next.UserID == "" {
		next.UserID = s.UserID
	}
	if next.Email == "" {
		next.Email = s.Email
	}
	if err := c.storeSession(ctx, next); err != nil {
		return Session{}, err
	}
	c.logger.Debug("session refreshed", zap.Time("expires_at", next.ExpiresAt))
	return next, nil
}

func (c *Client) storeSession(ctx context.Context, s Session) error {
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	if err := c.tokens.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// StoredSession returns the persisted session without contacting the backend.
func (c *Client) StoredSession(ctx context.Context) (Session, error) {
	return c.currentSession(ctx)
}
