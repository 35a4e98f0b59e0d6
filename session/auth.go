package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/jrsteele09/go-portal/users"
	"github.com/rs/zerolog/log"
)

// Login method labels
const (
	MethodCredentials = "credentials"
	MethodOAuth       = "oauth"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in with email and password
func (m *Manager) Login(ctx context.Context, email, password string) (*users.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	return m.signIn(ctx, MethodCredentials, LoginPath, credentials{Email: email, Password: password})
}

// AdoptOAuth exchanges an ID token verified from provider for a backend session. The
// response has the same shape as a credentials login.
func (m *Manager) AdoptOAuth(ctx context.Context, provider, idToken string) (*users.User, error) {
	if provider == "" || idToken == "" {
		return nil, fmt.Errorf("%w: provider and id token are required", ErrInvalidCredentials)
	}
	body := map[string]string{"idToken": idToken}
	return m.signIn(ctx, MethodOAuth+":"+provider, OAuthPath+provider, body)
}

func (m *Manager) signIn(ctx context.Context, method, path string, body any) (*users.User, error) {
	m.begin()

	var raw json.RawMessage
	if err := m.api.Post(ctx, path, body, &raw); err != nil {
		err = translateCredentialError(err)
		m.metrics.ObserveLogin(method, metrics.OutcomeFailure)
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, m.fail(StatusUnauthenticated, err)
		}
		return nil, m.fail(StatusError, err)
	}

	user, pair, err := decodeAuthResponse(raw)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("sign-in response could not be used")
		m.metrics.ObserveLogin(method, metrics.OutcomeFailure)
		return nil, m.fail(StatusError, err)
	}

	m.establish(ctx, user, pair)
	m.metrics.ObserveLogin(method, metrics.OutcomeSuccess)
	log.Info().Str("method", method).Str("user", user.ID).Msg("signed in")
	return user.Clone(), nil
}

// translateCredentialError maps rejections of a sign-in request to ErrInvalidCredentials
func translateCredentialError(err error) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status == 0 || apiErr.Status >= 500 {
		return err
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Status == http.StatusUnauthorized,
		apiErr.Status == http.StatusForbidden,
		apiErr.Status == http.StatusNotFound,
		strings.Contains(msg, "invalid credentials"),
		strings.Contains(msg, "user not found"):
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case apiErr.Status == http.StatusBadRequest && len(apiErr.ValidationErrors) == 0:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return err
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %w: "+format, append([]any{ErrServer, ErrMalformedResponse}, args...)...)
}

// decodeAuthResponse reads {user, token|tokens|accessToken}, optionally wrapped in {data}
func decodeAuthResponse(raw json.RawMessage) (*users.User, *tokenstore.Pair, error) {
	var envelope struct {
		User json.RawMessage `json:"user"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, malformed("%v", err)
	}
	if isEmptyJSON(envelope.User) && !isEmptyJSON(envelope.Data) {
		return decodeAuthResponse(envelope.Data)
	}
	if isEmptyJSON(envelope.User) {
		return nil, nil, malformed("response has no user")
	}

	user, err := decodeUser(envelope.User)
	if err != nil {
		return nil, nil, err
	}
	pair, err := apiclient.DecodeTokenPair(raw)
	if err != nil {
		return nil, nil, malformed("response has no token")
	}
	return user, pair, nil
}

// unwrapUser reads a user from {user}, {data} or a bare object
func unwrapUser(raw json.RawMessage) (*users.User, error) {
	var envelope struct {
		User json.RawMessage `json:"user"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, malformed("%v", err)
	}
	switch {
	case !isEmptyJSON(envelope.User):
		raw = envelope.User
	case !isEmptyJSON(envelope.Data):
		raw = envelope.Data
	}
	var u users.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, malformed("%v", err)
	}
	return &u, nil
}

// decodeUser is unwrapUser for responses that must identify the user
func decodeUser(raw json.RawMessage) (*users.User, error) {
	u, err := unwrapUser(raw)
	if err != nil {
		return nil, err
	}
	if u.ID == "" && u.Email == "" {
		return nil, malformed("user has neither id nor email")
	}
	return u, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
