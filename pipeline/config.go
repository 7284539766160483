package pipeline

import (
	"strings"
	"time"

	"github.com/jrsteele09/neoping-client/internal/config"
)

const defaultTimeout = 15 * time.Second

// Config is the immutable configuration of a Client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration // per attempt; a replay gets a fresh budget
	DefaultHeaders map[string]string
	// ExemptPaths are path suffixes that never carry an access token and
	// never enter the refresh flow.
	ExemptPaths []string
}

// ConfigFrom builds a Config from the application API settings.
func ConfigFrom(api config.APIConfig) Config {
	return Config{
		BaseURL:        api.GetBaseURL(),
		Timeout:        api.GetRequestTimeout(),
		DefaultHeaders: api.GetDefaultHeaders(),
		ExemptPaths:    api.GetExemptPaths(),
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.DefaultHeaders == nil {
		c.DefaultHeaders = map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		}
	}
	if c.ExemptPaths == nil {
		c.ExemptPaths = []string{config.RouteLogin, config.RouteSignup, config.RouteRefreshToken}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// IsExempt reports whether path (query string ignored) ends with one of the
// exempt suffixes.
func (c Config) IsExempt(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	for _, suffix := range c.ExemptPaths {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func (c Config) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}
