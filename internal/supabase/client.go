package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nyx-chat/nyx/internal/backend"
	"go.uber.org/zap"
)

// Config locates the hosted project.
type Config struct {
	URL            string
	AnonKey        string
	RequestTimeout time.Duration
}

// Client talks to the auth, REST and Realtime APIs of one project.
type Client struct {
	base    *url.URL
	anonKey string
	http    *http.Client
	tokens  TokenStore
	logger  *zap.Logger

	mu      sync.Mutex
	session *Session

	rt *realtime
}

var _ backend.Backend = (*Client)(nil)

// New creates a client. tokens persists the signed-in session between runs.
func New(cfg Config, tokens TokenStore, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("backend url is not configured")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("anon key is not configured")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", cfg.URL)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if tokens == nil {
		tokens = NewMemoryTokens()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		base:    base,
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
	c.rt = newRealtime(c, websocket.DefaultDialer, logger.Named("realtime"))
	return c, nil
}

// Close drops every realtime channel.
func (c *Client) Close() error {
	return c.rt.close()
}

// APIError is a non-2xx response from the hosted backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
	// anon sends the anon key as bearer instead of the session token.
	anon bool
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs req and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op string, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	bearer := c.anonKey
	if !req.anon {
		token, err := c.accessToken(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		bearer = token
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return backend.Unavailable(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.Unavailable(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, data)
		c.logger.Debug("backend call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w: %w", op, backend.ErrNotAuthenticated, apiErr)
		}
		return backend.Unavailable(op, apiErr)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backend.Unavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeAPIError(status int, data []byte) *APIError {
	var body struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(data, &body)

	e := &APIError{Status: status}
	switch {
	case body.ErrorCode != "":
		e.Code = body.ErrorCode
	case body.Code != nil:
		e.Code = fmt.Sprint(body.Code)
	}
	for _, msg := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if msg != "" {
			e.Message = msg
			break
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(data))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// IsStatus reports whether err carries an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
