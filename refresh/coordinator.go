// Package refresh exchanges the stored refresh token for a new access token.
package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const flightKey = "refresh"

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Coordinator performs token refreshes. Concurrent callers share a single
// in-flight refresh call.
type Coordinator struct {
	url        string
	timeout    time.Duration
	store      *credentials.Store
	httpClient *http.Client
	logger     zerolog.Logger
	group      singleflight.Group

	mu            sync.RWMutex
	lastRefreshed time.Time
}

type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = httpClient
	}
}

// NewCoordinator creates a coordinator that posts to the API's refresh route.
func NewCoordinator(store *credentials.Store, cfg config.APIConfig, options ...Option) *Coordinator {
	c := &Coordinator{
		url:        cfg.GetBaseURL() + config.RouteRefreshToken,
		timeout:    cfg.GetRefreshTimeout(),
		store:      store,
		httpClient: &http.Client{},
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "refresh").Logger()
	return c
}

// Refresh returns the new credential once it has been stored. On failure both
// tokens have been cleared and the error is a *RefreshError. A caller whose
// ctx ends first gets ctx.Err() while the shared call runs to completion.
func (c *Coordinator) Refresh(ctx context.Context) (credentials.Credential, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresh(callCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return credentials.Credential{}, res.Err
		}
		if res.Shared {
			c.logger.Debug().Msg("joined in-flight token refresh")
		}
		return res.Val.(credentials.Credential), nil
	case <-ctx.Done():
		return credentials.Credential{}, ctx.Err()
	}
}

// LastRefreshed is the time of the last successful refresh.
func (c *Coordinator) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefreshed
}

func (c *Coordinator) refresh(ctx context.Context) (credentials.Credential, error) {
	refreshToken := c.store.Get(ctx, credentials.RefreshTokenKey)
	if refreshToken == "" {
		return c.fail(ctx, &RefreshError{Kind: NoRefreshToken})
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return c.fail(ctx, &RefreshError{Kind: MalformedResponse, Err: err})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return c.fail(ctx, &RefreshError{Kind: Network, Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Int("refresh_len", len(refreshToken)).Msg("refreshing access token")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(ctx, &RefreshError{Kind: Network, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(ctx, &RefreshError{Kind: Network, Err: errors.Wrap(err, "reading refresh response")})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return c.fail(ctx, &RefreshError{Kind: Rejected, StatusCode: resp.StatusCode, Message: e.Message})
	}

	var tokens refreshResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return c.fail(ctx, &RefreshError{Kind: MalformedResponse, Err: err})
	}
	if tokens.AccessToken == "" {
		return c.fail(ctx, &RefreshError{Kind: MalformedResponse, Err: errors.New("response has no accessToken")})
	}

	// Save keeps the stored refresh token when none was returned.
	if err := c.store.Save(ctx, credentials.Credential{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}); err != nil {
		return c.fail(ctx, &RefreshError{Kind: Storage, Err: err})
	}

	cred := credentials.Credential{AccessToken: tokens.AccessToken, RefreshToken: refreshToken}
	if tokens.RefreshToken != "" {
		cred.RefreshToken = tokens.RefreshToken
	}

	refreshedAt := NowTimeFunc()
	c.mu.Lock()
	c.lastRefreshed = refreshedAt
	c.mu.Unlock()

	c.logger.Info().
		Time("refreshed_at", refreshedAt).
		Int("access_len", len(cred.AccessToken)).
		Bool("rotated", tokens.RefreshToken != "").
		Msg("access token refreshed")
	return cred, nil
}

// fail clears both tokens so no half-updated credential survives.
func (c *Coordinator) fail(ctx context.Context, rerr *RefreshError) (credentials.Credential, error) {
	c.logger.Warn().Err(rerr).Msg("token refresh failed")
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear credentials after refresh failure")
	}
	return credentials.Credential{}, rerr
}
