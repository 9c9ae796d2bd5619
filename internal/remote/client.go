// Package remote talks to the taskdeck sync server over HTTP.
//
// A Client keeps the session token on disk so that later runs stay signed
// in. It is the auth.Authenticator used by the auth provider and the
// store.Gateway used by the task store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/config"
	"github.com/existflow/taskdeck/internal/logger"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, auth.ErrUnauthorized) match a 401
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Options configures a Client
type Options struct {
	ServerURL   string
	Timeout     time.Duration
	SessionPath string // empty keeps the session in memory only
	HTTPClient  *http.Client
}

// Client is the sync server client
type Client struct {
	serverURL   string
	sessionPath string
	httpClient  *http.Client

	mu      sync.RWMutex
	session *Session
}

// New creates a client and loads a saved session if there is one
func New(opts Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		serverURL:   strings.TrimRight(opts.ServerURL, "/"),
		sessionPath: opts.SessionPath,
		httpClient:  httpClient,
	}

	if err := c.loadSession(); err != nil {
		logger.Warn("Ignoring unreadable session file", logger.F("path", c.sessionPath), logger.F("error", err))
	}
	return c, nil
}

// NewFromConfig creates a client for the configured server, keeping the
// session next to the config file
func NewFromConfig(cfg *config.Config) (*Client, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return New(Options{
		ServerURL:   cfg.ServerURL,
		Timeout:     cfg.RequestTimeout,
		SessionPath: filepath.Join(dir, "session.json"),
	})
}

// ServerURL returns the server this client talks to
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Ping checks that the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// authed calls do for an endpoint that needs a session
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	if c.token() == "" {
		return auth.ErrNotSignedIn
	}
	return c.do(ctx, method, apiPrefix+path, body, out)
}

// do sends a JSON request and decodes a JSON response into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("API call",
		logger.F("method", method),
		logger.F("path", path),
		logger.F("status", resp.StatusCode),
		logger.F("duration", time.Since(start).String()))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Message != "":
			msg = body.Message
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
