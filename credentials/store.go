package credentials

import (
	"context"

	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Store is the credential store shared by the pipeline, the refresh
// coordinator and the session. Reads never fail: an unavailable backend reads
// as an empty value. Writes follow last-write-wins per key.
type Store struct {
	repo   Repo
	logger zerolog.Logger
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(repo Repo, options ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "credentials").Logger()
	return s
}

// Get returns the stored value or "" when the key is absent or the backend
// cannot be read.
func (s *Store) Get(ctx context.Context, name string) string {
	value, err := s.repo.Get(ctx, name)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", name).Msg("credential read failed")
		}
		return ""
	}
	return value
}

func (s *Store) Set(ctx context.Context, name, value string) error {
	if err := s.repo.Set(ctx, name, value); err != nil {
		return errors.Wrapf(err, "Store.Set %s", name)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return errors.Wrapf(err, "Store.Delete %s", name)
	}
	return nil
}

// Keys lists the stored keys; an unreadable backend lists as empty.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.repo.ListKeys(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("credential key listing failed")
		return nil
	}
	return keys
}

func (s *Store) Load(ctx context.Context) Credential {
	return Credential{
		AccessToken:  s.Get(ctx, AccessTokenKey),
		RefreshToken: s.Get(ctx, RefreshTokenKey),
	}
}

// Save writes the access token, then the refresh token when one is given.
// An empty RefreshToken keeps the stored one.
func (s *Store) Save(ctx context.Context, c Credential) error {
	if c.AccessToken == "" {
		return errors.New("Store.Save: access token is required")
	}
	if err := s.Set(ctx, AccessTokenKey, c.AccessToken); err != nil {
		return err
	}
	if c.RefreshToken != "" {
		if err := s.Set(ctx, RefreshTokenKey, c.RefreshToken); err != nil {
			return err
		}
	}
	s.logger.Debug().
		Int("access_len", len(c.AccessToken)).
		Bool("rotated_refresh", c.RefreshToken != "").
		Msg("credentials stored")
	return nil
}

// Clear deletes both tokens. Both deletes are attempted; the first failure is
// returned.
func (s *Store) Clear(ctx context.Context) error {
	return s.DeleteAll(ctx, AccessTokenKey, RefreshTokenKey)
}

func (s *Store) DeleteAll(ctx context.Context, names ...string) error {
	var first error
	for _, name := range names {
		if err := s.Delete(ctx, name); err != nil {
			s.logger.Error().Err(err).Str("key", name).Msg("credential delete failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// TokenSource exposes the stored credential to oauth2-aware clients.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: s}
}

type storeTokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	c := ts.store.Load(ts.ctx)
	if c.IsZero() {
		return nil, apperrors.ErrNotAuthenticated
	}
	return c.Token(), nil
}
