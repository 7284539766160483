// Package session keeps the signed-in user of the process. The stored
// credential is the source of truth; the Manager only mirrors it.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/jrsteele09/neoping-client/pipeline"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Credentials are the login parameters.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest is sent to the signup endpoint. Extra is merged into the body.
type SignupRequest struct {
	Username string
	Password string
	Email    string
	Extra    map[string]any
}

func (r SignupRequest) body() map[string]any {
	body := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		body[k] = v
	}
	body["username"] = r.Username
	body["password"] = r.Password
	if r.Email != "" {
		body["email"] = r.Email
	}
	return body
}

// tokenResponse is the token part of a login (or signup) response; the rest
// of the object is the user.
type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type Manager struct {
	client *pipeline.Client
	store  *credentials.Store
	logger zerolog.Logger

	mu            sync.RWMutex
	user          *User
	authenticated bool
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates the session and registers it to be cleared when the
// pipeline reports an expired session.
func NewManager(client *pipeline.Client, store *credentials.Store, options ...Option) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "session").Logger()
	client.OnSessionExpired(m.expired)
	return m
}

// Login replaces any stored credential with the one issued for creds.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*User, error) {
	// The previous session ends here, whether or not this login succeeds.
	if err := m.store.DeleteAll(ctx,
		credentials.AccessTokenKey,
		credentials.RefreshTokenKey,
		credentials.UsernameKey,
		credentials.UserDataKey,
	); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear existing session before login")
	}
	m.reset()

	resp, err := m.client.Post(ctx, config.RouteLogin, creds)
	if err != nil {
		m.logger.Info().Err(err).Str("username", creds.Username).Msg("login failed")
		return nil, authErrorFrom(err)
	}

	user, tokens, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, err
	}
	if tokens.Token == "" {
		return nil, &AuthError{Kind: MalformedResponse, Message: "no access token received from server"}
	}

	if err := m.establish(ctx, user, tokens); err != nil {
		return nil, err
	}
	m.logger.Info().Str("username", user.Username).Msg("logged in")
	return user.clone(), nil
}

// Signup registers an account. When the backend answers with a token the
// new account is signed in as if by Login.
func (m *Manager) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	resp, err := m.client.Post(ctx, config.RouteSignup, req.body())
	if err != nil {
		m.logger.Info().Err(err).Str("username", req.Username).Msg("signup failed")
		return nil, authErrorFrom(err)
	}

	user, tokens, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, err
	}
	if user.Username == "" {
		user.Username = req.Username
	}
	if tokens.Token == "" {
		return user.clone(), nil
	}

	if err := m.establish(ctx, user, tokens); err != nil {
		return nil, err
	}
	return user.clone(), nil
}

// Logout forgets the stored credential and the cached user. It makes no
// network call and is safe to repeat.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.store.DeleteAll(ctx,
		credentials.AccessTokenKey,
		credentials.RefreshTokenKey,
		credentials.UsernameKey,
		credentials.UserDataKey,
	); err != nil {
		m.logger.Warn().Err(err).Msg("logout could not clear every stored key")
	}
	m.reset()
	m.logger.Info().Msg("logged out")
}

// Restore rebuilds the session from a stored credential at startup. With no
// stored token it leaves the session signed out and returns nil.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store.Get(ctx, credentials.AccessTokenKey) == "" {
		m.reset()
		return nil
	}
	_, err := m.Refresh(ctx)
	return err
}

// Refresh reloads the current user from the backend.
func (m *Manager) Refresh(ctx context.Context) (*User, error) {
	resp, err := m.client.Get(ctx, config.RouteMe)
	if err != nil {
		return nil, authErrorFrom(err)
	}

	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, &AuthError{Kind: MalformedResponse, Err: err}
	}

	m.cacheUser(ctx, &user)
	m.set(&user)
	return user.clone(), nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.clone()
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

func (m *Manager) establish(ctx context.Context, user *User, tokens tokenResponse) error {
	m.logger.Debug().
		Int("access_len", len(tokens.Token)).
		Int("refresh_len", len(tokens.RefreshToken)).
		Msg("storing issued tokens")

	if err := m.store.Save(ctx, credentials.Credential{
		AccessToken:  tokens.Token,
		RefreshToken: tokens.RefreshToken,
	}); err != nil {
		return &AuthError{Kind: Storage, Err: err}
	}
	m.cacheUser(ctx, user)
	m.set(user)
	return nil
}

// cacheUser keeps the username and user record next to the tokens. The cache
// is informational, so failures are only logged.
func (m *Manager) cacheUser(ctx context.Context, user *User) {
	if err := m.store.Set(ctx, credentials.UsernameKey, user.Username); err != nil {
		m.logger.Warn().Err(err).Msg("failed to cache username")
	}
	data, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to encode user data")
		return
	}
	if err := m.store.Set(ctx, credentials.UserDataKey, string(data)); err != nil {
		m.logger.Warn().Err(err).Msg("failed to cache user data")
	}
}

// expired is the pipeline's session-expired hook. Tokens are already gone.
func (m *Manager) expired(ctx context.Context) {
	if err := m.store.DeleteAll(ctx, credentials.UsernameKey, credentials.UserDataKey); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear cached user after session expiry")
	}
	m.reset()
}

func (m *Manager) set(user *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user.clone()
	m.authenticated = true
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.authenticated = false
}

func decodeTokenResponse(resp *pipeline.Response) (*User, tokenResponse, error) {
	var tokens tokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return nil, tokenResponse{}, &AuthError{Kind: MalformedResponse, Err: errors.Wrap(err, "token response")}
	}
	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, tokenResponse{}, &AuthError{Kind: MalformedResponse, Err: errors.Wrap(err, "user record")}
	}
	delete(user.Fields, "token")
	delete(user.Fields, "refreshToken")
	if len(user.Fields) == 0 {
		user.Fields = nil
	}
	return &user, tokens, nil
}
