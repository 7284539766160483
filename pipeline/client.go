// Package pipeline sends authenticated requests to the NeoPing backend. It
// attaches the stored access token, refreshes it once when the backend
// answers 401/403 and replays the request once with the new token.
package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/internal/config"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Refresher exchanges the stored refresh token for a new credential. It is
// expected to persist the result before returning and to clear the store on
// failure.
type Refresher interface {
	Refresh(ctx context.Context) (credentials.Credential, error)
}

// SessionExpiredFunc is called after the pipeline gives up on a session.
type SessionExpiredFunc func(ctx context.Context)

// Response is a 2xx answer from the backend with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.Wrap(apperrors.ErrMalformedResponse, "Response.Decode: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(apperrors.ErrMalformedResponse, "Response.Decode: %v", err)
	}
	return nil
}

type Client struct {
	cfg        Config
	store      *credentials.Store
	refresher  Refresher
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.RWMutex
	onExpired []SessionExpiredFunc
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the transport. Its Timeout is ignored; Config.Timeout
// applies per attempt.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(cfg Config, store *credentials.Store, refresher Refresher, options ...Option) *Client {
	c := &Client{
		cfg:        cfg.withDefaults(),
		store:      store,
		refresher:  refresher,
		httpClient: &http.Client{},
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "pipeline").Logger()
	return c
}

// OnSessionExpired registers fn to run whenever a request ends in
// SessionExpired. Hooks run synchronously, in registration order.
func (c *Client) OnSessionExpired(fn SessionExpiredFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Send(ctx, http.MethodGet, path, nil, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Send(ctx, http.MethodDelete, path, nil, nil)
}

// Send performs one logical request. Failures are always *RequestError, apart
// from a request that cannot be encoded or built and so was never sent.
func (c *Client) Send(ctx context.Context, method, path string, body any, header http.Header) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, errors.Wrapf(err, "Client.Send %s %s", method, path)
	}

	req := newPendingRequest(method, path, payload, header)
	exempt := c.cfg.IsExempt(path)

	var token string
	if !exempt {
		token = c.store.Get(ctx, credentials.AccessTokenKey)
	}

	for {
		resp, err := c.attempt(ctx, req, token)
		if err != nil {
			return nil, err
		}
		if !isAuthFailure(resp.StatusCode) {
			return c.classify(req, resp)
		}
		if exempt {
			return nil, newRequestError(AuthRejected, req, resp, nil)
		}
		if req.Attempt >= maxReplays {
			return nil, c.expire(ctx, req, resp, errors.New("replay rejected"))
		}

		// Another request may already have refreshed the token we sent.
		if current := c.store.Get(ctx, credentials.AccessTokenKey); current != "" && current != token {
			req, token = req.retried(), current
			continue
		}

		cred, err := c.refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// The caller gave up while waiting; the refresh itself may
				// still succeed for others.
				return nil, newRequestError(NetworkError, req, nil, ctx.Err())
			}
			return nil, c.expire(ctx, req, resp, err)
		}
		req, token = req.retried(), cred.AccessToken
		c.logger.Debug().Str("request_id", req.ID).Str("path", req.Path).Msg("replaying after token refresh")
	}
}

func (c *Client) refresh(ctx context.Context) (credentials.Credential, error) {
	if c.refresher == nil {
		return credentials.Credential{}, apperrors.ErrNoRefreshToken
	}
	cred, err := c.refresher.Refresh(ctx)
	if err != nil {
		return credentials.Credential{}, err
	}
	if cred.AccessToken == "" {
		return credentials.Credential{}, apperrors.ErrMalformedResponse
	}
	return cred, nil
}

// attempt sends req once under its own timeout and reads the whole body.
// Transport failures are NetworkError; a request that cannot be built is
// returned as a plain error because nothing was sent.
func (c *Client) attempt(ctx context.Context, req PendingRequest, token string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := req.httpRequest(ctx, c.cfg, token)
	if err != nil {
		return nil, errors.Wrap(err, "Client.Send")
	}

	logged := !strings.HasSuffix(req.Path, config.RouteHealth)
	if logged {
		c.logger.Debug().
			Str("request_id", req.ID).
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", req.Attempt).
			Int("token_len", len(token)).
			Msg("sending request")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", req.ID).Str("path", req.Path).Msg("no response from backend")
		return nil, newRequestError(NetworkError, req, nil, err)
	}
	defer httpResp.Body.Close()

	// A body cut off mid-read (connection reset, attempt timeout) is no
	// complete response either.
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newRequestError(NetworkError, req, nil, errors.Wrap(err, "reading response body"))
	}

	if logged {
		c.logger.Debug().
			Str("request_id", req.ID).
			Int("status", httpResp.StatusCode).
			Int("attempt", req.Attempt).
			Msg("response received")
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		RequestID:  req.ID,
	}, nil
}

func (c *Client) classify(req PendingRequest, resp *Response) (*Response, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newRequestError(ServerRejected, req, resp, nil)
	}
	return resp, nil
}

// expire clears the stored credential, runs the session hooks and returns
// the SessionExpired error for req.
func (c *Client) expire(ctx context.Context, req PendingRequest, resp *Response, cause error) error {
	c.logger.Info().
		Err(cause).
		Str("request_id", req.ID).
		Str("path", req.Path).
		Msg("session expired")

	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear credentials after session expiry")
	}

	c.mu.RLock()
	hooks := append([]SessionExpiredFunc(nil), c.onExpired...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(context.WithoutCancel(ctx))
	}

	return newRequestError(SessionExpired, req, resp, cause)
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
