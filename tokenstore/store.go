package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	tokensKey = "auth.tokens"
	userKey   = "auth.user"
)

// Pair is the access/refresh token pair issued by the backend. Both values are opaque.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// String never prints token material
func (p Pair) String() string {
	return fmt.Sprintf("tokenstore.Pair{access:%t refresh:%t}", p.AccessToken != "", p.RefreshToken != "")
}

func (p Pair) GoString() string {
	return p.String()
}

// MarshalZerologObject logs presence flags only
func (p Pair) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("access_token", p.AccessToken != "").Bool("refresh_token", p.RefreshToken != "")
}

// Store holds the token pair and cached user of one session context. Reads are served from
// memory once loaded; every write goes to the KV before it returns.
type Store struct {
	kv KV

	mu         sync.RWMutex
	loaded     bool
	tokens     *Pair
	userLoaded bool
	user       *users.User
}

// New returns a Store over kv
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Tokens returns the current pair, or nil when none is stored. It never fails: when the
// backing KV is unavailable the error is logged and the session reads as signed out.
func (s *Store) Tokens(ctx context.Context) *Pair {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return clonePair(s.tokens)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return clonePair(s.tokens)
	}

	raw, err := s.kv.Get(ctx, tokensKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		s.loaded = true
		s.tokens = nil
		return nil
	case err != nil:
		log.Warn().Err(err).Msg("token store unavailable, treating session as signed out")
		return nil
	}

	var p Pair
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.AccessToken == "" {
		log.Warn().Msg("discarding unreadable token pair")
		s.loaded = true
		s.tokens = nil
		return nil
	}
	s.loaded = true
	s.tokens = &p
	return clonePair(s.tokens)
}

// SetTokens stores pair, or clears all persisted token material (and the cached user) when
// pair is nil or has no access token. The in-memory view always reflects the request, even
// when the KV write fails; the KV error is returned.
func (s *Store) SetTokens(ctx context.Context, pair *Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	if pair == nil || pair.AccessToken == "" {
		s.tokens = nil
		s.user = nil
		s.userLoaded = true
		if err := s.kv.Delete(ctx, tokensKey, userKey); err != nil {
			return fmt.Errorf("clear tokens: %w", err)
		}
		return nil
	}

	s.tokens = clonePair(pair)
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := s.kv.Set(ctx, tokensKey, string(data)); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// CachedUser returns the user saved alongside the tokens, or nil
func (s *Store) CachedUser(ctx context.Context) *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userLoaded {
		return s.user.Clone()
	}

	raw, err := s.kv.Get(ctx, userKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			log.Warn().Err(err).Msg("cached user unavailable")
			return nil
		}
		s.userLoaded = true
		return nil
	}
	var u users.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.userLoaded = true
		return nil
	}
	s.userLoaded = true
	s.user = &u
	return s.user.Clone()
}

// SetCachedUser saves u next to the tokens; nil removes it
func (s *Store) SetCachedUser(ctx context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLoaded = true
	s.user = u.Clone()
	if u == nil {
		if err := s.kv.Delete(ctx, userKey); err != nil {
			return fmt.Errorf("clear cached user: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(ctx, userKey, string(data)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

func clonePair(p *Pair) *Pair {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
