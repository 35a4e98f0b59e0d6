package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "Correct1horse"
)

// fakeBackend is a minimal stand-in for the portal REST API
type fakeBackend struct {
	mu           sync.Mutex
	access       string
	refresh      string
	approved     bool
	omitToken    bool
	logoutStatus int
	registerBody string
	registerCode int

	logouts   atomic.Int32
	refreshes atomic.Int32
	meCalls   atomic.Int32
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) userJSON() map[string]any {
	return map[string]any{"_id": "u1", "email": testEmail, "fName": "Ada", "lName": "Lovelace", "isApproved": b.approved, "role": "customer"}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	authorized := b.access != "" && r.Header.Get("Authorization") == "Bearer "+b.access
	switch {
	case r.URL.Path == LoginPath || strings.HasPrefix(r.URL.Path, OAuthPath):
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if r.URL.Path == LoginPath && in["password"] != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
			return
		}
		if strings.HasPrefix(r.URL.Path, OAuthPath) && in["idToken"] != "google-id-token" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid token"})
			return
		}
		if b.omitToken {
			writeJSON(w, http.StatusOK, map[string]any{"user": b.userJSON()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  b.userJSON(),
			"token": map[string]string{"accessToken": b.access, "refreshToken": b.refresh},
		})
	case r.URL.Path == MePath:
		b.meCalls.Add(1)
		if !authorized {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": b.userJSON()})
	case r.URL.Path == apiclient.DefaultRefreshPath:
		b.refreshes.Add(1)
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if b.refresh == "" || in["refreshToken"] != b.refresh {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
			return
		}
		b.access = b.access + "-rotated"
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": b.access})
	case r.URL.Path == LogoutPath:
		b.logouts.Add(1)
		if b.logoutStatus != 0 {
			w.WriteHeader(b.logoutStatus)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(r.URL.Path, "/users/email/"):
		if !authorized {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"isApproved": b.approved})
	case r.URL.Path == RegisterPath:
		code := b.registerCode
		if code == 0 {
			code = http.StatusCreated
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(b.registerBody))
	default:
		if !authorized {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type fixture struct {
	backend *fakeBackend
	server  *httptest.Server
	kv      *tokenstore.MemoryKV
	store   *tokenstore.Store
	client  *apiclient.Client
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := &fakeBackend{access: "access-1", refresh: "refresh-1", approved: true, registerBody: `{"message":"Account created"}`}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	f := &fixture{backend: b, server: srv, kv: tokenstore.NewMemoryKV()}
	f.rebuild(t)
	return f
}

// rebuild simulates a process restart over the same persisted KV
func (f *fixture) rebuild(t *testing.T) {
	t.Helper()
	f.store = tokenstore.New(f.kv)
	client, err := apiclient.New(f.server.URL, f.store)
	require.NoError(t, err)
	f.client = client
	mgr, err := NewManager(client, f.store)
	require.NoError(t, err)
	f.manager = mgr
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, f.manager.IsAuthenticated())
}

func (f *fixture) requireSignedOut(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.Nil(t, f.store.Tokens(ctx))
	require.Nil(t, f.store.CachedUser(ctx))
	require.Nil(t, f.manager.Snapshot().User)
	require.False(t, f.manager.IsAuthenticated())
}
