package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/existflow/taskdeck/internal/auth"
)

// Session is a server session persisted between runs
type Session struct {
	ServerURL string    `json:"server_url"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity returns the user the session belongs to
func (s *Session) Identity() auth.Identity {
	return auth.Identity{UserID: s.UserID, Username: s.Username, Email: s.Email}
}

// Session returns a copy of the current session, or nil
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SavedIdentity returns the identity of a stored session for this server
// that has not expired, or nil
func (c *Client) SavedIdentity() *auth.Identity {
	s := c.Session()
	if s == nil || s.Token == "" {
		return nil
	}
	if s.ServerURL != c.serverURL {
		return nil
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil
	}
	id := s.Identity()
	return &id
}

func (c *Client) loadSession() error {
	if c.sessionPath == "" {
		return nil
	}

	data, err := os.ReadFile(c.sessionPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse session: %w", err)
	}

	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	return nil
}

// setSession replaces the session in memory and on disk. nil removes it.
func (c *Client) setSession(s *Session) error {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if c.sessionPath == "" {
		return nil
	}

	if s == nil {
		if err := os.Remove(c.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.sessionPath, data, 0600)
}
