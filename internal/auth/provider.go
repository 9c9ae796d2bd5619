// Package auth tracks who is signed in and tells subscribers when that changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/existflow/taskdeck/internal/logger"
)

var (
	// ErrUnauthorized means the server rejected the credentials or session
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotSignedIn is returned by operations that need a session
	ErrNotSignedIn = errors.New("not signed in")
)

// Identity is the authenticated user
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Authenticator performs the server side of authentication
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Identity, error)
	Register(ctx context.Context, username, email, password string) (Identity, error)
	RequestMagicLink(ctx context.Context, email string) (string, error)
	VerifyMagicLink(ctx context.Context, token string) (Identity, error)
	Me(ctx context.Context) (Identity, error)
	Logout(ctx context.Context) error
	// SavedIdentity returns the identity of a session persisted by an
	// earlier run, or nil.
	SavedIdentity() *Identity
}

// Provider supplies the current identity and a loading flag
type Provider struct {
	client Authenticator

	mu      sync.Mutex
	current *Identity
	loading bool
	subs    map[int]func(*Identity)
	nextSub int

	emitMu sync.Mutex
}

// NewProvider creates a provider with no identity
func NewProvider(client Authenticator) *Provider {
	return &Provider{
		client: client,
		subs:   make(map[int]func(*Identity)),
	}
}

// Current returns a copy of the signed-in identity, or nil
func (p *Provider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

// Loading reports whether a sign-in or session restore is in progress
func (p *Provider) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Subscribe registers fn for identity changes. fn receives nil on sign-out.
// The returned function removes the subscription.
func (p *Provider) Subscribe(fn func(*Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Restore resumes a session saved by an earlier run. The session is checked
// against the server; a rejected session is discarded. When the server cannot
// be reached the saved identity is used as-is so the store can still try to load.
func (p *Provider) Restore(ctx context.Context) error {
	saved := p.client.SavedIdentity()
	if saved == nil {
		p.set(nil)
		return nil
	}

	p.setLoading(true)
	defer p.setLoading(false)

	id, err := p.client.Me(ctx)
	switch {
	case err == nil:
		p.set(&id)
		return nil
	case errors.Is(err, ErrUnauthorized):
		logger.Warn("Saved session rejected", logger.F("user", saved.UserID))
		_ = p.client.Logout(ctx)
		p.set(nil)
		return fmt.Errorf("session expired, please sign in again: %w", err)
	default:
		logger.Warn("Could not verify saved session", logger.F("error", err))
		p.set(saved)
		return nil
	}
}

// SignIn authenticates with username and password
func (p *Provider) SignIn(ctx context.Context, username, password string) error {
	return p.authenticate(func() (Identity, error) {
		return p.client.Login(ctx, username, password)
	})
}

// SignUp creates an account and signs in
func (p *Provider) SignUp(ctx context.Context, username, email, password string) error {
	return p.authenticate(func() (Identity, error) {
		return p.client.Register(ctx, username, email, password)
	})
}

// RequestMagicLink asks the server for a passwordless login token.
// In development the server returns the token directly.
func (p *Provider) RequestMagicLink(ctx context.Context, email string) (string, error) {
	return p.client.RequestMagicLink(ctx, email)
}

// VerifyMagicLink exchanges a magic link token for a session
func (p *Provider) VerifyMagicLink(ctx context.Context, token string) error {
	return p.authenticate(func() (Identity, error) {
		return p.client.VerifyMagicLink(ctx, token)
	})
}

// SignOut ends the session. The local identity is cleared even if the
// server cannot be told.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.Current() == nil && p.client.SavedIdentity() == nil {
		return ErrNotSignedIn
	}
	err := p.client.Logout(ctx)
	p.set(nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (p *Provider) authenticate(fn func() (Identity, error)) error {
	p.setLoading(true)
	defer p.setLoading(false)

	id, err := fn()
	if err != nil {
		return err
	}
	p.set(&id)
	logger.Info("Signed in", logger.F("user", id.UserID), logger.F("username", id.Username))
	return nil
}

func (p *Provider) setLoading(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = v
}

// set records the identity and notifies subscribers if the user changed
func (p *Provider) set(id *Identity) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	prev := p.current
	if id != nil {
		cp := *id
		id = &cp
	}
	p.current = id

	changed := (prev == nil) != (id == nil) || (prev != nil && id != nil && prev.UserID != id.UserID)
	if !changed {
		p.mu.Unlock()
		return
	}

	subs := make([]func(*Identity), 0, len(p.subs))
	for i := 0; i < p.nextSub; i++ {
		if fn, ok := p.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range subs {
		if id == nil {
			fn(nil)
			continue
		}
		cp := *id
		fn(&cp)
	}
}
