package fakebackend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// dropConnection closes the TCP connection so the client sees no response.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("fakebackend: response writer cannot hijack")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func (b *Backend) userPayload(username string) map[string]any {
	payload := map[string]any{"username": username}
	if acc, ok := b.accounts[username]; ok {
		for k, v := range acc.fields {
			payload[k] = v
		}
	}
	return payload
}

func (b *Backend) loginHandler(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[req.Username]
	if !ok || acc.password != req.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	resp := b.userPayload(req.Username)
	if b.loginOmitsToken {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp["token"] = b.issueAccess(req.Username)
	if b.issueRefresh {
		resp["refreshToken"] = b.issueRefreshToken(req.Username)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) signupHandler(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username, _ := req["username"].(string)
	password, _ := req["password"].(string)
	if username == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[username]; exists {
		writeMessage(w, http.StatusConflict, "Username is already taken")
		return
	}
	fields := map[string]any{}
	for k, v := range req {
		if k != "password" && k != "username" {
			fields[k] = v
		}
	}
	b.accounts[username] = &account{password: password, fields: fields}
	writeJSON(w, http.StatusCreated, b.userPayload(username))
}

func (b *Backend) refreshHandler(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	behavior, gate := b.refreshBehavior, b.refreshGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	switch behavior {
	case RefreshDrop:
		dropConnection(w)
		return
	case RefreshReject:
		writeMessage(w, http.StatusUnauthorized, "Refresh token expired")
		return
	case RefreshMalformed:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	username, ok := b.refreshTokens[req.RefreshToken]
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	resp := map[string]string{"accessToken": b.issueAccess(username)}
	if b.rotateRefresh {
		delete(b.refreshTokens, req.RefreshToken)
		resp["refreshToken"] = b.issueRefreshToken(username)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) healthHandler(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	protected := b.healthProtected
	b.mu.Unlock()

	if protected {
		writeMessage(w, http.StatusUnauthorized, "Full authentication is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// protected validates the bearer token before calling next with the user name.
func (b *Backend) protected(next func(w http.ResponseWriter, r *http.Request, username string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.record(r)

		b.mu.Lock()
		drop, delay, rejectAll, status := b.dropProtected, b.protectedDelay, b.rejectAll, b.rejectStatus
		b.mu.Unlock()

		if drop {
			dropConnection(w)
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		username, ok := b.accessTokens[token]
		b.mu.Unlock()

		if !ok || rejectAll {
			writeMessage(w, status, "Access denied")
			return
		}
		next(w, r, username)
	}
}

func (b *Backend) meHandler(w http.ResponseWriter, _ *http.Request, username string) {
	b.mu.Lock()
	payload := b.userPayload(username)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, payload)
}

func (b *Backend) failHandler(w http.ResponseWriter, r *http.Request, _ string) {
	status, _ := strconv.Atoi(mux.Vars(r)["status"])
	writeMessage(w, status, "Request failed with status "+strconv.Itoa(status))
}

// echoHandler answers any other protected route with what it received.
func (b *Backend) echoHandler(w http.ResponseWriter, r *http.Request, username string) {
	var body any
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]any{
		"method":    r.Method,
		"path":      r.URL.Path[len(APIPrefix):],
		"user":      username,
		"body":      body,
		"requestId": r.Header.Get("X-Request-ID"),
	})
}
