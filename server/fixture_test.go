package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/contact"
	"github.com/jrsteele09/go-portal/internal/config"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/internal/utils"
	"github.com/jrsteele09/go-portal/server/authflowrepo"
	"github.com/jrsteele09/go-portal/session"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "Correct1horse"
	testSecret   = "a-test-session-secret-of-decent-length"
)

// backendAPI stands in for the portal REST API
type backendAPI struct {
	mu       sync.Mutex
	access   string
	refresh  string
	approved bool
	idTokens []string

	registerStatus int
	registerBody   map[string]any

	logouts atomic.Int32
}

func (b *backendAPI) set(fn func(b *backendAPI)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *backendAPI) user() map[string]any {
	return map[string]any{"_id": "u1", "email": testEmail, "fName": "Ada", "lName": "Lovelace", "isApproved": b.approved}
}

func (b *backendAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	authorized := b.access != "" && r.Header.Get("Authorization") == "Bearer "+b.access
	var in map[string]string
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&in)
	}

	switch {
	case r.URL.Path == session.LoginPath || strings.HasPrefix(r.URL.Path, session.OAuthPath):
		if r.URL.Path == session.LoginPath && in["password"] != testPassword {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
			return
		}
		if in["idToken"] != "" {
			b.idTokens = append(b.idTokens, in["idToken"])
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"user":  b.user(),
			"token": map[string]string{"accessToken": b.access, "refreshToken": b.refresh},
		})
	case r.URL.Path == session.RegisterPath && b.registerStatus != 0:
		respondJSON(w, b.registerStatus, b.registerBody)
	case r.URL.Path == session.RegisterPath:
		respondJSON(w, http.StatusCreated, map[string]any{"message": "Registered. We'll email you once approved."})
	case r.URL.Path == apiclient.DefaultRefreshPath:
		if b.refresh == "" || in["refreshToken"] != b.refresh {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
			return
		}
		b.access += "-rotated"
		respondJSON(w, http.StatusOK, map[string]string{"accessToken": b.access})
	case r.URL.Path == session.LogoutPath:
		b.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	case !authorized:
		respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
	case r.URL.Path == session.MePath:
		respondJSON(w, http.StatusOK, map[string]any{"user": b.user()})
	case strings.HasPrefix(r.URL.Path, "/users/email/"):
		respondJSON(w, http.StatusOK, map[string]any{"user": b.user()})
	case r.URL.Path == "/invoices/my-invoices":
		respondJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{
			"_id": "inv1", "number": "INV-1001", "amount": 499, "currency": "USD", "status": "pending",
			"issuedAt": "2025-05-01T00:00:00Z", "dueAt": utils.Ptr(time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)),
		}}})
	case r.URL.Path == "/requests" && r.Method == http.MethodGet:
		respondJSON(w, http.StatusOK, []map[string]any{{"_id": "r1", "title": "New laptop setup", "status": "in-progress"}})
	case r.URL.Path == "/requests":
		respondJSON(w, http.StatusCreated, map[string]any{"_id": "r2", "title": in["title"], "status": "open"})
	case r.URL.Path == "/plans" && r.Method == http.MethodGet:
		respondJSON(w, http.StatusOK, []map[string]any{{"_id": "p1", "name": "Business", "price": 799, "interval": "month"}})
	case r.URL.Path == "/plans":
		w.WriteHeader(http.StatusNoContent)
	default:
		respondJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []contact.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email contact.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type fixture struct {
	backend  *backendAPI
	server   *Server
	sessions *session.Registry
	mailer   *fakeMailer
	http     *httptest.Server
	client   *http.Client
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()

	backend := &backendAPI{access: "access-1", refresh: "refresh-1", approved: true}
	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)

	t.Setenv("ENV", "TEST")
	t.Setenv("APP_NAME", "Acme IT")
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("API_URL", api.URL)
	t.Setenv("ALLOWED_ORIGINS", "https://partner.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sessions, err := session.NewRegistry(tokenstore.NewMemoryKV(), api.URL, session.WithRegistryMetrics(m))
	require.NoError(t, err)

	mailer := &fakeMailer{}
	contactSvc, err := contact.NewService(mailer, "site@example.com", "sales@example.com", contact.WithMetrics(m))
	require.NoError(t, err)

	options = append([]Option{WithMetrics(m, reg), WithContactService(contactSvc)}, options...)
	srv, err := New(config.New(), sessions, authflowrepo.NewInMemoryRepo(time.Minute), options...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &fixture{backend: backend, server: srv, sessions: sessions, mailer: mailer, http: ts, client: client}
}

type response struct {
	status   int
	location string
	body     string
	header   http.Header
}

func (f *fixture) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body), header: resp.Header}
}

func (f *fixture) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.http.URL+path, nil)
	require.NoError(t, err)
	return f.do(t, req)
}

func (f *fixture) postForm(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.http.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, req)
}

func (f *fixture) postJSON(t *testing.T, path string, body any) response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.http.URL+path, strings.NewReader(string(data)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

func (f *fixture) login(t *testing.T) response {
	t.Helper()
	return f.postForm(t, RouteLogin, url.Values{"email": {testEmail}, "password": {testPassword}})
}

func (f *fixture) sessionCookie(t *testing.T) *SessionClaims {
	t.Helper()
	u, err := url.Parse(f.http.URL)
	require.NoError(t, err)
	for _, c := range f.client.Jar.Cookies(u) {
		if c.Name == sessionCookieName {
			claims, err := f.server.parseSessionToken(c.Value)
			require.NoError(t, err)
			return claims
		}
	}
	t.Fatal("no session cookie")
	return nil
}
