package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/jrsteele09/go-portal/users"
	"github.com/rs/zerolog/log"
)

// Backend routes used by the Manager
const (
	LoginPath      = "/auth/login"
	RegisterPath   = "/auth/register"
	MePath         = "/auth/me"
	LogoutPath     = "/auth/logout"
	OAuthPath      = "/auth/oauth/"
	UserByEmailFmt = "/users/email/%s"
)

// API is the backend client the Manager talks through
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
}

// TokenStore is the persisted state the Manager owns
type TokenStore interface {
	Tokens(ctx context.Context) *tokenstore.Pair
	SetTokens(ctx context.Context, pair *tokenstore.Pair) error
	CachedUser(ctx context.Context) *users.User
	SetCachedUser(ctx context.Context, user *users.User) error
}

var (
	_ API        = (*apiclient.Client)(nil)
	_ TokenStore = (*tokenstore.Store)(nil)
)

// Manager is the only writer of one browser's session state
type Manager struct {
	api     API
	store   TokenStore
	metrics *metrics.Metrics

	mu        sync.Mutex
	status    Status
	user      *users.User
	errMsg    string
	expired   bool
	listeners map[int]func(Snapshot)
	nextID    int
}

// Option defines a function type to modify the Manager instance.
type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a Manager over api and store. When api can report session expiry (as
// *apiclient.Client does) the Manager registers itself to be told.
func NewManager(api API, store TokenStore, options ...Option) (*Manager, error) {
	if api == nil {
		return nil, errors.New("[NewManager] api is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] token store is required")
	}
	m := &Manager{
		api:       api,
		store:     store,
		status:    StatusIdle,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(m)
	}
	if hooked, ok := api.(interface {
		SetSessionExpiredHook(func(context.Context))
	}); ok {
		hooked.SetSessionExpiredHook(m.handleSessionExpired)
	}
	return m, nil
}

// Snapshot returns a copy of the current state
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// API is the backend client bound to this session's tokens
func (m *Manager) API() API {
	return m.api
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{Status: m.status, User: m.user.Clone(), Error: m.errMsg}
}

// IsAuthenticated holds only while a user and an access token are both present
func (m *Manager) IsAuthenticated() bool {
	hasTokens := m.store.Tokens(context.Background()) != nil
	m.mu.Lock()
	defer m.mu.Unlock()
	return hasTokens && m.status == StatusAuthenticated && m.user != nil
}

func (m *Manager) IsApproved() bool {
	if !m.IsAuthenticated() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil && m.user.IsApproved
}

func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusLoading
}

// ConsumeExpired reports, once, that the session ended because the backend rejected it
func (m *Manager) ConsumeExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := m.expired
	m.expired = false
	return expired
}

// Subscribe registers fn to receive a snapshot after every state change
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers afterwards
func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	snap := m.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (m *Manager) begin() {
	m.update(func() {
		m.status = StatusLoading
		m.errMsg = ""
	})
}

func (m *Manager) fail(status Status, err error) error {
	m.update(func() {
		m.status = status
		m.user = nil
		m.errMsg = UserMessage(err)
	})
	return err
}

// establish stores the credentials of a successful sign-in
func (m *Manager) establish(ctx context.Context, user *users.User, pair *tokenstore.Pair) {
	if err := m.store.SetTokens(ctx, pair); err != nil {
		log.Warn().Err(err).Msg("tokens kept in memory only")
	}
	if err := m.store.SetCachedUser(ctx, user); err != nil {
		log.Warn().Err(err).Msg("could not cache user")
	}
	m.update(func() {
		m.status = StatusAuthenticated
		m.user = user.Clone()
		m.errMsg = ""
		m.expired = false
	})
}

// endSession clears persisted and in-memory state after the backend rejected the session
func (m *Manager) endSession(ctx context.Context) {
	if err := m.store.SetTokens(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("could not clear tokens")
	}
	m.update(func() {
		m.status = StatusUnauthenticated
		m.user = nil
		m.errMsg = msgSessionExpired
		m.expired = true
	})
}

// detach resets a Manager whose session moved to another id
func (m *Manager) detach() {
	m.update(func() {
		m.status = StatusIdle
		m.user = nil
		m.errMsg = ""
		m.expired = false
	})
}

func (m *Manager) handleSessionExpired(ctx context.Context) {
	log.Info().Msg("session expired, signing out")
	m.endSession(ctx)
}

// FetchCurrentUser loads the signed-in user. A rejected session is not an error: state is
// cleared and (nil, nil) is returned.
func (m *Manager) FetchCurrentUser(ctx context.Context) (*users.User, error) {
	if m.store.Tokens(ctx) == nil {
		m.update(func() {
			m.status = StatusUnauthenticated
			m.user = nil
		})
		return nil, nil
	}
	m.begin()
	return m.fetchCurrentUser(ctx)
}

func (m *Manager) fetchCurrentUser(ctx context.Context) (*users.User, error) {
	var raw json.RawMessage
	if err := m.api.Get(ctx, MePath, &raw); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) || errors.Is(err, ErrSessionExpired) {
			m.endSession(ctx)
			return nil, nil
		}
		return nil, m.fail(StatusError, err)
	}

	user, err := decodeUser(raw)
	if err != nil {
		log.Error().Err(err).Msg("current user response could not be read")
		return nil, m.fail(StatusError, err)
	}

	pair := m.store.Tokens(ctx)
	if pair == nil {
		// cleared by a concurrent logout
		m.update(func() {
			m.status = StatusUnauthenticated
			m.user = nil
		})
		return nil, nil
	}
	m.establish(ctx, user, pair)
	return user.Clone(), nil
}

// Resume resolves an idle (or failed) session from persisted tokens. Concurrent callers see
// the loading state and return immediately.
func (m *Manager) Resume(ctx context.Context) error {
	pair := m.store.Tokens(ctx)

	m.mu.Lock()
	if m.status != StatusIdle && m.status != StatusError {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if pair == nil {
		m.update(func() {
			m.status = StatusUnauthenticated
			m.user = nil
		})
		return nil
	}

	proceed := false
	m.update(func() {
		if m.status != StatusIdle && m.status != StatusError {
			return
		}
		proceed = true
		m.status = StatusLoading
		m.errMsg = ""
		// only a verified user is ever exposed
		m.user = nil
	})
	if !proceed {
		return nil
	}
	_, err := m.fetchCurrentUser(ctx)
	return err
}

// Logout ends the session. The backend is told on a best-effort basis; local state is
// always cleared.
func (m *Manager) Logout(ctx context.Context) error {
	if pair := m.store.Tokens(ctx); pair != nil {
		body := map[string]string{}
		if pair.RefreshToken != "" {
			body["refreshToken"] = pair.RefreshToken
		}
		if err := m.api.Post(ctx, LogoutPath, body, nil); err != nil && !errors.Is(err, apiclient.ErrUnauthorized) {
			log.Warn().Err(err).Msg("backend logout failed")
		}
	}

	err := m.store.SetTokens(ctx, nil)
	m.update(func() {
		m.status = StatusIdle
		m.user = nil
		m.errMsg = ""
		m.expired = false
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// CheckApproval asks the backend whether the signed-in user has been approved
func (m *Manager) CheckApproval(ctx context.Context) (bool, error) {
	m.mu.Lock()
	var email string
	if m.user != nil {
		email = m.user.Email
	}
	m.mu.Unlock()
	if email == "" {
		return false, ErrSessionNotFound
	}

	var raw json.RawMessage
	if err := m.api.Get(ctx, fmt.Sprintf(UserByEmailFmt, url.PathEscape(email)), &raw); err != nil {
		m.update(func() { m.errMsg = UserMessage(err) })
		return false, err
	}
	fetched, err := unwrapUser(raw)
	if err != nil {
		return false, err
	}

	var current *users.User
	m.update(func() {
		if m.user == nil || m.user.Email != email {
			return
		}
		m.user.IsApproved = fetched.IsApproved
		m.errMsg = ""
		current = m.user.Clone()
	})
	if current != nil {
		if err := m.store.SetCachedUser(ctx, current); err != nil {
			log.Warn().Err(err).Msg("could not cache user")
		}
	}
	return fetched.IsApproved, nil
}
