package pipeline

import (
	"context"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/jrsteele09/neoping-client/internal/config"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Health is the outcome of a backend health probe.
type Health struct {
	Reachable  bool
	Protected  bool // the backend answered 401/403; it is up but requires auth
	StatusCode int
	Latency    time.Duration
}

// Prober checks whether the backend is reachable. The probe is a bare GET
// outside the pipeline: it never carries a token and never refreshes.
type Prober struct {
	baseURL string
	timeout time.Duration
	client  *retry.Client
	logger  zerolog.Logger
}

type ProberOption func(*Prober)

func WithProberLogger(logger zerolog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

func NewProber(cfg Config, options ...ProberOption) (*Prober, error) {
	cfg = cfg.withDefaults()
	client, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "NewProber")
	}

	p := &Prober{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  client,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "health").Logger()
	return p, nil
}

// Check probes GET /health. An unreachable backend returns an error wrapping
// ErrNetwork together with a zero Health.
func (p *Prober) Check(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+config.RouteHealth, nil)
	if err != nil {
		return Health{}, errors.Wrap(err, "Prober.Check")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("backend unreachable")
		return Health{}, errors.Wrapf(apperrors.ErrNetwork, "Prober.Check: %v", err)
	}
	defer resp.Body.Close()

	h := Health{
		Reachable:  true,
		Protected:  isAuthFailure(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
	if !h.Protected && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return h, errors.Wrapf(apperrors.ErrServerRejected, "Prober.Check: status %d", resp.StatusCode)
	}
	return h, nil
}
