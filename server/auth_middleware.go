package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-portal/guard"
	"github.com/jrsteele09/go-portal/session"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the request's *SessionContext
	ContextKeySession ContextKey = "session"
	// ContextKeyFlash stores a notice raised while handling the request itself
	ContextKeyFlash ContextKey = "flash"
)

// SessionContext is the browser session a request belongs to
type SessionContext struct {
	ID      string
	Manager *session.Manager
	Claims  *SessionClaims
}

func sessionFrom(r *http.Request) *SessionContext {
	sc, _ := r.Context().Value(ContextKeySession).(*SessionContext)
	return sc
}

// SessionMiddleware resolves the session cookie to its Manager. Requests without a valid
// cookie get a fresh anonymous session.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var claims *SessionClaims
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			claims, err = s.parseSessionToken(cookie.Value)
			if err != nil {
				log.Debug().Err(err).Msg("discarding session cookie")
			}
		}

		fresh := claims == nil
		if fresh {
			claims = &SessionClaims{SessionID: newSessionID()}
		}

		mgr, err := s.sessions.Get(claims.SessionID)
		if err != nil {
			log.Err(err).Msg("could not open session")
			s.renderError(w, r, http.StatusInternalServerError, session.UserMessage(err))
			return
		}
		if fresh {
			if err := s.SetSessionCookie(w, r, claims.SessionID, session.Snapshot{}); err != nil {
				log.Err(err).Msg("could not set session cookie")
			}
		}

		sc := &SessionContext{ID: claims.SessionID, Manager: mgr, Claims: claims}
		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySession, sc)))
	}
}

// GuardMiddleware resolves the session and applies the navigation rules before a page renders
func (s *Server) GuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := sessionFrom(r)
		if sc == nil {
			next(w, r)
			return
		}
		mgr := sc.Manager

		resumeErr := mgr.Resume(r.Context())
		if resumeErr != nil {
			log.Warn().Err(resumeErr).Str("path", r.URL.Path).Msg("could not resume session")
		}
		expired := mgr.ConsumeExpired()

		state := guard.State{
			Loading:       mgr.IsLoading(),
			Authenticated: mgr.IsAuthenticated(),
			Approved:      mgr.IsApproved(),
		}
		// a backend outage is not a reason to send the user to login
		if resumeErr != nil && s.guard.Classify(r.URL.Path) == guard.Protected {
			s.renderError(w, r, http.StatusServiceUnavailable, session.UserMessage(resumeErr))
			return
		}

		decision := s.guard.Decide(state, r.URL.Path, r.URL.RawQuery)
		if expired {
			msg := session.UserMessage(session.ErrSessionExpired)
			if decision.Action == guard.Redirect {
				setFlash(w, r, msg)
			} else {
				r = r.WithContext(context.WithValue(r.Context(), ContextKeyFlash, msg))
			}
		}
		switch decision.Action {
		case guard.Loading:
			s.renderLoading(w, r)
		case guard.Redirect:
			redirectSuccess(w, r, decision.Target)
		default:
			next(w, r)
		}
	}
}

// loginURLFor is the login page returning to the current request
func loginURLFor(r *http.Request) string {
	return guard.LoginURL(r.URL.Path, r.URL.RawQuery)
}

// refreshSessionCookie re-signs the cookie with the session's current display claims
func (s *Server) refreshSessionCookie(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r)
	if sc == nil {
		return
	}
	snap := sc.Manager.Snapshot()
	if !sc.Manager.IsAuthenticated() {
		snap = session.Snapshot{}
	}
	if err := s.SetSessionCookie(w, r, sc.ID, snap); err != nil {
		log.Err(err).Msg("could not refresh session cookie")
	}
}

// rotateSession moves a freshly signed-in session to a new id and reissues the cookie
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request) error {
	sc := sessionFrom(r)
	if sc == nil {
		return session.ErrSessionNotFound
	}
	sid := newSessionID()
	mgr, err := s.sessions.Rotate(r.Context(), sc.ID, sid)
	if err != nil {
		return err
	}
	sc.ID, sc.Manager = sid, mgr
	return s.SetSessionCookie(w, r, sid, mgr.Snapshot())
}

// abandonSignIn signs out a session whose id could not be rotated
func (s *Server) abandonSignIn(r *http.Request, err error) {
	log.Error().Err(err).Msg("could not rotate session id after sign-in")
	if sc := sessionFrom(r); sc != nil {
		if err := sc.Manager.Logout(r.Context()); err != nil {
			log.Err(err).Msg("logout could not clear the session")
		}
	}
}
