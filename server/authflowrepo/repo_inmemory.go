package authflowrepo

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL bounds how long a sign-in round trip may take
const DefaultTTL = 10 * time.Minute

var (
	ErrStateNotFound = errors.New("state not found")
	ErrStateExpired  = errors.New("state expired")
)

// NowTimeFunc can be replaced in tests
var NowTimeFunc = time.Now

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.RWMutex
	ttl    time.Duration
	states map[string]*AuthFlowState
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		ttl:    ttl,
		states: make(map[string]*AuthFlowState),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	stored := *authState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = NowTimeFunc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	r.states[state] = &stored
	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, ErrStateNotFound
	}
	if r.expired(authState) {
		return nil, ErrStateExpired
	}
	copied := *authState
	return &copied, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

func (r *InMemoryRepo) expired(s *AuthFlowState) bool {
	return NowTimeFunc().Sub(s.CreatedAt) > r.ttl
}

// purgeLocked drops abandoned round trips
func (r *InMemoryRepo) purgeLocked() {
	for k, s := range r.states {
		if r.expired(s) {
			delete(r.states, k)
		}
	}
}
