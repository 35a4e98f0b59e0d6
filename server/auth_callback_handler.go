package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-portal/guard"
	"github.com/jrsteele09/go-portal/server/authflowrepo"
	"github.com/jrsteele09/go-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const providerGoogle = "google"

var errGoogleDisabled = errors.New("google sign-in is not configured")

func (s *Server) googleEnabled() bool {
	return s.googleOidc != nil || (s.config.GetGoogleClientID() != "" && s.config.GetGoogleClientSecret() != "")
}

// googleOidcConfig discovers Google's OIDC configuration on first use
func (s *Server) googleOidcConfig(ctx context.Context) (*OidcConfig, error) {
	s.oidcLock.Lock()
	defer s.oidcLock.Unlock()
	if s.googleOidc != nil {
		return s.googleOidc, nil
	}
	if !s.googleEnabled() {
		return nil, errGoogleDisabled
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetGoogleIssuer())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	clientID := s.config.GetGoogleClientID()
	s.googleOidc = &OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: s.config.GetGoogleClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.config.GetGoogleRedirectURL(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}
	return s.googleOidc, nil
}

// GoogleLoginHandler starts the Google sign-in round trip (GET /auth/oauth/google)
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oidcConfig, err := s.googleOidcConfig(r.Context())
		if err != nil {
			log.Err(err).Msg("google sign-in unavailable")
			redirectWithError(w, r, guard.LoginPath, "Google sign-in is currently unavailable.")
			return
		}

		state := generateRandomString(32)
		verifier := generateRandomString(32)
		nonce := generateRandomString(16)
		err = s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			Provider:     providerGoogle,
			SessionID:    sessionFrom(r).ID,
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    guard.SafeCallback(r.URL.Query().Get(guard.CallbackParam)),
			CreatedAt:    NowTimeFunc(),
		})
		if err != nil {
			log.Err(err).Msg("could not store auth state")
			redirectWithError(w, r, guard.LoginPath, "Google sign-in is currently unavailable.")
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(state,
			oidc.Nonce(nonce),
			oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(verifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GoogleCallbackHandler completes Google sign-in and hands the ID token to the backend
// (GET /auth/callback/google)
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fail := func(msg string, err error) {
			log.Warn().Err(err).Msg("google sign-in failed: " + msg)
			redirectWithError(w, r, guard.LoginPath, "Google sign-in failed. Please try again.")
		}

		if errorParam := r.FormValue("error"); errorParam != "" {
			fail("provider returned error", errors.New(errorParam+": "+r.FormValue("error_description")))
			return
		}
		state := r.FormValue("state")
		code := r.FormValue("code")
		if code == "" || state == "" {
			fail("missing code or state", nil)
			return
		}

		authState, err := s.authState.Get(state)
		if err != nil {
			fail("unknown state", err)
			return
		}
		// single use
		if err := s.authState.Delete(state); err != nil {
			log.Warn().Err(err).Msg("could not delete auth state")
		}

		sc := sessionFrom(r)
		if authState.Provider != providerGoogle || authState.SessionID != sc.ID {
			fail("state belongs to another session", nil)
			return
		}

		oidcConfig, err := s.googleOidcConfig(r.Context())
		if err != nil {
			fail("oidc config", err)
			return
		}

		oauth2Token, err := oidcConfig.OAuth2Config.Exchange(
			r.Context(),
			code,
			oauth2.SetAuthURLParam("code_verifier", authState.CodeVerifier),
		)
		if err != nil {
			fail("token exchange", err)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			fail("no id token", nil)
			return
		}
		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			fail("id token verification", err)
			return
		}
		if idToken.Nonce != authState.Nonce {
			fail("nonce mismatch", nil)
			return
		}

		user, err := sc.Manager.AdoptOAuth(r.Context(), providerGoogle, rawIDToken)
		if err != nil {
			log.Warn().Err(err).Msg("backend rejected google sign-in")
			redirectWithError(w, r, guard.LoginPath, session.UserMessage(err))
			return
		}

		if err := s.rotateSession(w, r); err != nil {
			s.abandonSignIn(r, err)
			redirectWithError(w, r, guard.LoginPath, session.UserMessage(err))
			return
		}
		if !user.IsApproved {
			redirectSuccess(w, r, guard.PendingApprovalPath)
			return
		}
		redirectSuccess(w, r, authState.ReturnURL)
	}
}
