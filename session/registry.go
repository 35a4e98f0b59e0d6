package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc is used for idle tracking and can be replaced in tests
var NowTimeFunc = time.Now

// Registry holds one Manager per browser session id. Managers are built lazily over a
// namespaced token store and their own API client, so no state is shared between browsers.
type Registry struct {
	kv         tokenstore.KV
	apiURL     string
	clientOpts []apiclient.Option
	metrics    *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	manager       *Manager
	store         *tokenstore.Store
	unsubscribe   func()
	lastSeen      time.Time
	authenticated atomic.Bool
}

// RegistryOption defines a function type to modify the Registry instance.
type RegistryOption func(*Registry)

// WithClientOptions passes options to every API client the Registry builds
func WithClientOptions(options ...apiclient.Option) RegistryOption {
	return func(r *Registry) {
		r.clientOpts = append(r.clientOpts, options...)
	}
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(kv tokenstore.KV, apiURL string, options ...RegistryOption) (*Registry, error) {
	if kv == nil {
		return nil, errors.New("[NewRegistry] kv is required")
	}
	if apiURL == "" {
		return nil, errors.New("[NewRegistry] api url is required")
	}
	r := &Registry{
		kv:       kv,
		apiURL:   apiURL,
		sessions: make(map[string]*entry),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Get returns the Manager for sid, creating it on first use
func (r *Registry) Get(sid string) (*Manager, error) {
	if sid == "" {
		return nil, ErrSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.lastSeen = NowTimeFunc()
		return e.manager, nil
	}

	e, err := r.newEntry(sid)
	if err != nil {
		return nil, err
	}
	r.sessions[sid] = e
	log.Debug().Int("sessions", len(r.sessions)).Msg("session context created")
	return e.manager, nil
}

func (r *Registry) newEntry(sid string) (*entry, error) {
	store := tokenstore.New(tokenstore.Namespace(r.kv, "session:"+sid))
	opts := append([]apiclient.Option{apiclient.WithMetrics(r.metrics)}, r.clientOpts...)
	client, err := apiclient.New(r.apiURL, store, opts...)
	if err != nil {
		return nil, err
	}
	mgr, err := NewManager(client, store, WithMetrics(r.metrics))
	if err != nil {
		return nil, err
	}

	e := &entry{manager: mgr, store: store, lastSeen: NowTimeFunc()}
	e.unsubscribe = mgr.Subscribe(func(s Snapshot) {
		now := s.IsAuthenticated()
		if e.authenticated.Swap(now) != now {
			if now {
				r.metrics.SessionAuthenticated(1)
			} else {
				r.metrics.SessionAuthenticated(-1)
			}
		}
	})
	return e, nil
}

// Rotate moves the authenticated session held under oldSID to newSID. The tokens are
// re-keyed under newSID and nothing is left behind under oldSID, so a session id known
// before sign-in never carries the signed-in session.
func (r *Registry) Rotate(ctx context.Context, oldSID, newSID string) (*Manager, error) {
	if oldSID == "" || newSID == "" || oldSID == newSID {
		return nil, errors.New("[Registry Rotate] distinct session ids are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[oldSID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, taken := r.sessions[newSID]; taken {
		return nil, errors.New("[Registry Rotate] new session id already in use")
	}
	snap := old.manager.Snapshot()
	pair := old.store.Tokens(ctx)
	if !snap.IsAuthenticated() || pair == nil {
		return nil, ErrSessionNotFound
	}

	e, err := r.newEntry(newSID)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetTokens(ctx, pair); err != nil {
		e.unsubscribe()
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	e.manager.establish(ctx, snap.User, pair)

	delete(r.sessions, oldSID)
	if err := old.store.SetTokens(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("could not clear rotated session")
	}
	old.manager.detach()
	r.release(old)

	r.sessions[newSID] = e
	log.Debug().Msg("session id rotated")
	return e.manager, nil
}

// Drop forgets the Manager for sid. Persisted tokens are left in place so the session can
// be resumed; call Logout first to end it.
func (r *Registry) Drop(sid string) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if ok {
		r.release(e)
	}
}

func (r *Registry) release(e *entry) {
	e.unsubscribe()
	if e.authenticated.Swap(false) {
		r.metrics.SessionAuthenticated(-1)
	}
}

// Sweep drops Managers not used for maxIdle and returns how many were dropped
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := NowTimeFunc().Add(-maxIdle)

	r.mu.Lock()
	var idle []*entry
	for sid, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e)
			delete(r.sessions, sid)
		}
	}
	r.mu.Unlock()

	for _, e := range idle {
		r.release(e)
	}
	return len(idle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
