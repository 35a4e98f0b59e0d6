package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-portal/session"
)

const (
	// sessionCookieName carries the signed session token
	sessionCookieName = "portal_session"
	// flashCookieName carries a one-shot notice for the next page
	flashCookieName = "portal_flash"

	flashMaxAge = 60
)

var errInvalidSessionToken = errors.New("invalid session token")

var NowTimeFunc = time.Now

// SessionClaims are the claims of the session cookie. The session id selects the
// Manager; the rest is display data only and is never trusted for access decisions.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	Approved  bool   `json:"approved,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func newSessionID() string {
	return uuid.NewString()
}

// signSessionToken builds the cookie value for sid, copying display claims from snap
func (s *Server) signSessionToken(sid string, snap session.Snapshot) (string, error) {
	now := NowTimeFunc()
	claims := SessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.GetAppName(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.GetMaxSessionAge())),
		},
	}
	if snap.IsAuthenticated() {
		claims.Subject = snap.User.ID
		claims.Email = snap.User.Email
		claims.Approved = snap.User.IsApproved
		claims.Role = string(snap.User.Role)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cookieKey)
}

// parseSessionToken verifies the cookie value and returns its claims
func (s *Server) parseSessionToken(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cookieKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.GetAppName()),
		jwt.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidSessionToken, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, errInvalidSessionToken
	}
	return claims, nil
}

// SetSessionCookie writes the session token for sid. A negative maxAge deletes it.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sid string, snap session.Snapshot) error {
	value, err := s.signSessionToken(sid, snap)
	if err != nil {
		return fmt.Errorf("[SetSessionCookie] sign: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.config.GetMaxSessionAge() / time.Second),
	})
	return nil
}

// setFlash stores msg for the next rendered page
func setFlash(w http.ResponseWriter, r *http.Request, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   flashMaxAge,
	})
}

// takeFlash reads and clears the pending flash message
func takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	msg, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return msg
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: path}
	}
	q := u.Query()
	q.Set("error", errorMsg)
	u.RawQuery = q.Encode()
	redirectSuccess(w, r, u.String())
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
