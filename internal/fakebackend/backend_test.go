package fakebackend_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/jrsteele09/neoping-client/internal/fakebackend"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestLoginIssuesSequentialTokens(t *testing.T) {
	b := fakebackend.New()
	defer b.Close()
	b.AddUser("alice", "secret", nil)

	resp, body := post(t, b.URL()+config.RouteLogin, map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "T1", body["token"])
	require.Equal(t, "R1", body["refreshToken"])
	require.Equal(t, "alice", body["username"])

	resp, body = post(t, b.URL()+config.RouteRefreshToken, map[string]string{"refreshToken": "R1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "T2", body["accessToken"])
	require.NotContains(t, body, "refreshToken")

	require.Equal(t, 1, b.Calls(config.RouteLogin))
	require.Equal(t, 1, b.Calls(config.RouteRefreshToken))
}

func TestProtectedRoutes(t *testing.T) {
	b := fakebackend.New()
	defer b.Close()
	b.AddUser("alice", "secret", nil)
	access, _ := b.Issue("alice")

	get := func(token string) int {
		req, err := http.NewRequest(http.MethodGet, b.URL()+config.RouteMe, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, get(access))
	require.Equal(t, http.StatusUnauthorized, get(""))

	b.SetRejectStatus(http.StatusForbidden)
	b.ExpireAccessTokens()
	require.Equal(t, http.StatusForbidden, get(access))
	require.Equal(t, []string{"Bearer " + access, "", "Bearer " + access}, b.AuthHeaders(config.RouteMe))
}
