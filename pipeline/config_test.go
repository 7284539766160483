package pipeline

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsExempt(t *testing.T) {
	cfg := Config{}.withDefaults()

	tests := []struct {
		path   string
		exempt bool
	}{
		{"/auth/login", true},
		{"/auth/signup", true},
		{"/auth/refresh-token", true},
		{"/auth/login?next=/feed", true},
		{"/auth/login/", true},
		{"/auth/me", false},
		{"/posts", false},
		{"/auth/login/history", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.exempt, cfg.IsExempt(tt.path), tt.path)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:8082/api/"}.withDefaults()

	require.Equal(t, defaultTimeout, cfg.Timeout)
	require.Equal(t, "application/json", cfg.DefaultHeaders["Content-Type"])
	require.Equal(t, "application/json", cfg.DefaultHeaders["Accept"])
	require.Equal(t, "http://localhost:8082/api/posts", cfg.url("/posts"))
	require.Equal(t, "http://localhost:8082/api/posts", cfg.url("posts"))
	require.Equal(t, "https://cdn.example.com/a.png", cfg.url("https://cdn.example.com/a.png"))
}

func TestPendingRequestRetriedIsACopy(t *testing.T) {
	req := newPendingRequest(http.MethodGet, "/posts", nil, http.Header{"X-Trace": {"1"}})
	replay := req.retried()

	require.Equal(t, 0, req.Attempt)
	require.Equal(t, 1, replay.Attempt)
	require.Equal(t, req.ID, replay.ID)
}

func TestPendingRequestHeaders(t *testing.T) {
	cfg := Config{BaseURL: "http://backend/api"}.withDefaults()
	req := newPendingRequest(http.MethodPost, "/posts", []byte(`{}`), http.Header{"Accept": {"text/plain"}})

	httpReq, err := req.httpRequest(t.Context(), cfg, "T1")
	require.NoError(t, err)
	require.Equal(t, "Bearer T1", httpReq.Header.Get("Authorization"))
	require.Equal(t, "text/plain", httpReq.Header.Get("Accept"))
	require.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	require.Equal(t, req.ID, httpReq.Header.Get("X-Request-ID"))

	httpReq, err = req.httpRequest(t.Context(), cfg, "")
	require.NoError(t, err)
	require.Empty(t, httpReq.Header.Get("Authorization"))
}

func TestEncodeBody(t *testing.T) {
	data, err := encodeBody(nil)
	require.NoError(t, err)
	require.Nil(t, data)

	data, err = encodeBody([]byte("raw"))
	require.NoError(t, err)
	require.Equal(t, "raw", string(data))

	data, err = encodeBody(map[string]int{"a": 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(data))

	_, err = encodeBody(make(chan int))
	require.Error(t, err)
}

func TestMessageOf(t *testing.T) {
	require.Equal(t, "boom", messageOf([]byte(`{"message":"boom"}`)))
	require.Empty(t, messageOf([]byte(`not json`)))
	require.Empty(t, messageOf(nil))
}
