// Package fakebackend is an in-process implementation of the NeoPing auth
// contract used by tests. It issues sequential tokens (T1, T2, ... and R1,
// R2, ...) so assertions can name them.
package fakebackend

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/neoping-client/internal/config"
)

// APIPrefix is the path the backend mounts its routes under.
const APIPrefix = "/api"

// RefreshBehavior scripts how the refresh endpoint answers.
type RefreshBehavior int

const (
	RefreshOK        RefreshBehavior = iota // issue a new access token
	RefreshReject                           // 401 {"message": ...}
	RefreshDrop                             // close the connection without a response
	RefreshMalformed                        // 200 without accessToken
)

type account struct {
	password string
	fields   map[string]any
}

type Backend struct {
	server *httptest.Server

	mu              sync.Mutex
	accounts        map[string]*account
	accessTokens    map[string]string // access token -> username
	refreshTokens   map[string]string // refresh token -> username
	nextAccess      int
	nextRefresh     int
	rotateRefresh   bool
	issueRefresh    bool
	refreshBehavior RefreshBehavior
	rejectStatus    int
	rejectAll       bool
	dropProtected   bool
	protectedDelay  time.Duration
	healthProtected bool
	refreshGate     <-chan struct{}
	loginOmitsToken bool
	calls           map[string]int
	authHeaders     map[string][]string
}

func New() *Backend {
	b := &Backend{
		accounts:      make(map[string]*account),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		issueRefresh:  true,
		rejectStatus:  http.StatusUnauthorized,
		calls:         make(map[string]int),
		authHeaders:   make(map[string][]string),
	}
	b.server = httptest.NewServer(b.router())
	return b
}

func (b *Backend) router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc(config.RouteLogin, b.loginHandler).Methods(http.MethodPost)
	api.HandleFunc(config.RouteSignup, b.signupHandler).Methods(http.MethodPost)
	api.HandleFunc(config.RouteRefreshToken, b.refreshHandler).Methods(http.MethodPost)
	api.HandleFunc(config.RouteHealth, b.healthHandler).Methods(http.MethodGet)
	api.HandleFunc(config.RouteMe, b.protected(b.meHandler)).Methods(http.MethodGet)
	api.HandleFunc("/fail/{status:[0-9]+}", b.protected(b.failHandler))
	api.PathPrefix("/").HandlerFunc(b.protected(b.echoHandler))
	return r
}

// URL is the API base URL clients should be configured with.
func (b *Backend) URL() string {
	return b.server.URL + APIPrefix
}

func (b *Backend) Close() {
	b.server.Close()
}

// AddUser registers an account. fields are returned by /auth/me and merged
// into the login response.
func (b *Backend) AddUser(username, password string, fields map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fields == nil {
		fields = map[string]any{}
	}
	b.accounts[username] = &account{password: password, fields: fields}
}

// Issue mints a token pair for username without a login call.
func (b *Backend) Issue(username string) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueAccess(username), b.issueRefreshToken(username)
}

// ExpireAccessTokens revokes every access token issued so far.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTokens = make(map[string]string)
}

// SetRotateRefresh makes the refresh endpoint return a new refresh token.
func (b *Backend) SetRotateRefresh(rotate bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotateRefresh = rotate
}

// SetIssueRefreshOnLogin controls whether login returns a refresh token.
func (b *Backend) SetIssueRefreshOnLogin(issue bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issueRefresh = issue
}

func (b *Backend) SetRefreshBehavior(behavior RefreshBehavior) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshBehavior = behavior
}

// SetLoginOmitsToken makes login succeed without a token in the response.
func (b *Backend) SetLoginOmitsToken(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginOmitsToken = omit
}

// SetRefreshGate holds refresh requests until gate is closed. Pass nil to
// stop gating.
func (b *Backend) SetRefreshGate(gate <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshGate = gate
}

// SetRejectStatus picks the status protected routes answer with (401 or 403).
func (b *Backend) SetRejectStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectStatus = status
}

// SetRejectAll makes protected routes reject every token, including fresh ones.
func (b *Backend) SetRejectAll(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectAll = reject
}

// SetDropProtected closes connections to protected routes without answering.
func (b *Backend) SetDropProtected(drop bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropProtected = drop
}

func (b *Backend) SetProtectedDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.protectedDelay = d
}

func (b *Backend) SetHealthProtected(protected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthProtected = protected
}

// Calls reports how many requests reached path (relative to APIPrefix).
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// AuthHeaders returns the Authorization header of every request to path, in order.
func (b *Backend) AuthHeaders(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders[path]...)
}

func (b *Backend) record(r *http.Request) {
	path := r.URL.Path[len(APIPrefix):]
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[path]++
	b.authHeaders[path] = append(b.authHeaders[path], r.Header.Get("Authorization"))
}

// issueAccess and issueRefreshToken must be called with mu held.
func (b *Backend) issueAccess(username string) string {
	b.nextAccess++
	token := fmt.Sprintf("T%d", b.nextAccess)
	b.accessTokens[token] = username
	return token
}

func (b *Backend) issueRefreshToken(username string) string {
	b.nextRefresh++
	token := fmt.Sprintf("R%d", b.nextRefresh)
	b.refreshTokens[token] = username
	return token
}
