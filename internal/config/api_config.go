package config

import (
	"strings"
	"time"
)

const (
	apiURLVar         = "API_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"
	refreshTimeoutVar = "REFRESH_TIMEOUT"
)

const (
	RouteLogin        = "/auth/login"
	RouteSignup       = "/auth/signup"
	RouteRefreshToken = "/auth/refresh-token"
	RouteMe           = "/auth/me"
	RouteHealth       = "/health"
)

type API struct{}

var _ APIConfig = API{}

// GetBaseURL returns the API root every request path is appended to (e.g. "http://localhost:8082/api")
func (API) GetBaseURL() string {
	return strings.TrimRight(GetEnv(apiURLVar, "http://localhost:8082/api"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetDurationEnv(requestTimeoutVar, 15*time.Second)
}

func (API) GetRefreshTimeout() time.Duration {
	return GetDurationEnv(refreshTimeoutVar, 10*time.Second)
}

// GetExemptPaths lists the path suffixes that never carry an access token
// and never trigger a token refresh.
func (API) GetExemptPaths() []string {
	return []string{RouteLogin, RouteSignup, RouteRefreshToken}
}

func (API) GetDefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}
