package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/existflow/taskdeck/internal/auth"
	"github.com/existflow/taskdeck/internal/logger"
)

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

// Register creates a new account and stores its session
func (c *Client) Register(ctx context.Context, username, email, password string) (auth.Identity, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, apiPrefix+"/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("register failed: %w", err)
	}
	return c.saveAuth(resp)
}

// Login authenticates with username and password
func (c *Client) Login(ctx context.Context, username, password string) (auth.Identity, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, apiPrefix+"/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("login failed: %w", err)
	}
	return c.saveAuth(resp)
}

// RequestMagicLink asks for a passwordless login link. The token is only
// returned by servers running in development mode.
func (c *Client) RequestMagicLink(ctx context.Context, email string) (string, error) {
	var resp struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/magic-link", map[string]string{"email": email}, &resp); err != nil {
		return "", fmt.Errorf("magic link request failed: %w", err)
	}
	return resp.Token, nil
}

// VerifyMagicLink exchanges a magic link token for a session
func (c *Client) VerifyMagicLink(ctx context.Context, token string) (auth.Identity, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/magic-link/"+url.PathEscape(token), nil, &resp); err != nil {
		return auth.Identity{}, fmt.Errorf("magic link failed: %w", err)
	}
	return c.saveAuth(resp)
}

// Me asks the server who the stored session belongs to
func (c *Client) Me(ctx context.Context) (auth.Identity, error) {
	var id auth.Identity
	if err := c.authed(ctx, http.MethodGet, "/me", nil, &id); err != nil {
		return auth.Identity{}, err
	}
	return id, nil
}

// Logout ends the session on the server and forgets it locally.
// The local session is removed even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	var remoteErr error
	if c.token() != "" {
		remoteErr = c.authed(ctx, http.MethodPost, "/logout", nil, nil)
		if remoteErr != nil {
			logger.Warn("Server logout failed", logger.F("error", remoteErr))
		}
	}

	if err := c.setSession(nil); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	// A rejected token is already gone on the server
	if remoteErr != nil && !isUnauthorized(remoteErr) {
		return remoteErr
	}
	return nil
}

func (c *Client) saveAuth(resp authResponse) (auth.Identity, error) {
	s := &Session{
		ServerURL: c.serverURL,
		Token:     resp.Token,
		UserID:    resp.UserID,
		Username:  resp.Username,
		Email:     resp.Email,
	}
	if t, err := time.Parse(time.RFC3339, resp.ExpiresAt); err == nil {
		s.ExpiresAt = t
	}

	if err := c.setSession(s); err != nil {
		return auth.Identity{}, fmt.Errorf("save session: %w", err)
	}
	return s.Identity(), nil
}
