// Package session keeps the signed-in user across runs and supplies the
// bearer token for every backend request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/devicestore"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ErrNoSession means there is no usable token on this device.
var ErrNoSession = errors.New("not signed in")

// Client is the auth part of the backend.
type Client interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Signup(ctx context.Context, name, email, password string) (*api.AuthResponse, error)
	Me(ctx context.Context) (*api.User, error)
}

// Manager owns the token and cached user slots.
type Manager struct {
	client Client
	tokens devicestore.Store
	users  devicestore.Store

	mu    sync.RWMutex
	token string
	user  *api.User

	revalidate singleflight.Group
	now        func() time.Time
}

// NewManager stores the token in tokens (usually encrypted) and the user
// profile in users.
func NewManager(client Client, tokens, users devicestore.Store) *Manager {
	return &Manager{
		client: client,
		tokens: tokens,
		users:  users,
		now:    time.Now,
	}
}

// Token implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns the cached profile, nil when signed out.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	resp, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.store(ctx, resp)
}

func (m *Manager) Signup(ctx context.Context, name, email, password string) (*api.User, error) {
	resp, err := m.client.Signup(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	return m.store(ctx, resp)
}

func (m *Manager) store(ctx context.Context, resp *api.AuthResponse) (*api.User, error) {
	if resp.Token == "" {
		return nil, fmt.Errorf("auth response did not include a token")
	}
	profile, err := json.Marshal(resp.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := m.tokens.Set(ctx, devicestore.KeyAuthToken, []byte(resp.Token)); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	if err := m.users.Set(ctx, devicestore.KeyAuthUser, profile); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	user := resp.User
	m.mu.Lock()
	m.token = resp.Token
	m.user = &user
	m.mu.Unlock()
	return m.User(), nil
}

// Logout clears both slots.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	return errors.Join(
		m.tokens.Delete(ctx, devicestore.KeyAuthToken),
		m.users.Delete(ctx, devicestore.KeyAuthUser),
	)
}

// Restore loads the session saved on this device. A token whose exp claim
// has already passed is cleared without asking the server.
func (m *Manager) Restore(ctx context.Context) (*api.User, error) {
	raw, err := m.tokens.Get(ctx, devicestore.KeyAuthToken)
	switch {
	case errors.Is(err, devicestore.ErrNotFound):
		return nil, ErrNoSession
	case errors.Is(err, devicestore.ErrDecrypt):
		log.Printf("Stored token could not be decrypted, signing out")
		if err := m.Logout(ctx); err != nil {
			log.Printf("Failed to clear unreadable session: %v", err)
		}
		return nil, ErrNoSession
	case err != nil:
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	token := string(raw)
	if expired(token, m.now()) {
		log.Printf("Stored token has expired, signing out")
		if err := m.Logout(ctx); err != nil {
			log.Printf("Failed to clear expired session: %v", err)
		}
		return nil, ErrNoSession
	}

	var user *api.User
	if profile, err := m.users.Get(ctx, devicestore.KeyAuthUser); err == nil {
		var u api.User
		if err := json.Unmarshal(profile, &u); err != nil {
			log.Printf("Ignoring unreadable cached user: %v", err)
		} else {
			user = &u
		}
	} else if !errors.Is(err, devicestore.ErrNotFound) {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.user = user
	m.mu.Unlock()
	return m.User(), nil
}

// Revalidate checks the token with the server, typically when the app comes
// back to the foreground. A 401 signs the user out; other failures keep the
// session as it is. Concurrent calls share one request.
func (m *Manager) Revalidate(ctx context.Context) (*api.User, error) {
	if !m.IsAuthenticated() {
		return nil, ErrNoSession
	}

	v, err, _ := m.revalidate.Do("me", func() (any, error) {
		user, err := m.client.Me(ctx)
		if errors.Is(err, api.ErrUnauthorized) {
			log.Printf("Token rejected by server, signing out")
			if lerr := m.Logout(ctx); lerr != nil {
				log.Printf("Failed to clear rejected session: %v", lerr)
			}
			return nil, ErrNoSession
		}
		if err != nil {
			return nil, err
		}

		// A logout while the request was in flight wins.
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.token == "" {
			return nil, ErrNoSession
		}
		u := *user
		m.user = &u
		if profile, merr := json.Marshal(user); merr == nil {
			if serr := m.users.Set(ctx, devicestore.KeyAuthUser, profile); serr != nil {
				log.Printf("Failed to refresh cached user: %v", serr)
			}
		}
		out := u
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.User), nil
}

// expired reports whether token is a JWT whose exp is not after now. Tokens
// that are not JWTs or carry no exp are left to the server to judge.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
