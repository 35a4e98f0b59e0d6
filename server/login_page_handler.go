package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-portal/apiclient"
	"github.com/jrsteele09/go-portal/guard"
	"github.com/jrsteele09/go-portal/session"
	"github.com/rs/zerolog/log"
)

// LoginForm is echoed back into the login page
type LoginForm struct {
	Email       string
	CallbackURL string
	GoogleURL   string
}

func (s *Server) loginForm(r *http.Request, email string) LoginForm {
	callback := r.FormValue(guard.CallbackParam)
	form := LoginForm{Email: email, CallbackURL: callback}
	if s.googleEnabled() {
		form.GoogleURL = RouteGoogleLogin
		if callback != "" {
			form.GoogleURL += "?" + guard.CallbackParam + "=" + url.QueryEscape(callback)
		}
	}
	return form
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(w, r, "Sign in")
		data.Form = s.loginForm(r, r.URL.Query().Get("email"))
		s.render(w, http.StatusOK, "login", data)
	}
}

// LoginSubmissionHandler processes the login form submission (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")

		renderError := func(status int, msg string) {
			data := s.pageData(w, r, "Sign in")
			data.Error = msg
			data.Form = s.loginForm(r, email)
			s.render(w, status, "login", data)
		}

		if email == "" || password == "" {
			renderError(http.StatusUnprocessableEntity, "Email and password are required.")
			return
		}

		sc := sessionFrom(r)
		user, err := sc.Manager.Login(r.Context(), email, password)
		if err != nil {
			log.Info().Err(err).Msg("login failed")
			renderError(statusForError(err), session.UserMessage(err))
			return
		}

		if err := s.rotateSession(w, r); err != nil {
			s.abandonSignIn(r, err)
			renderError(http.StatusInternalServerError, session.UserMessage(err))
			return
		}
		if !user.IsApproved {
			redirectSuccess(w, r, guard.PendingApprovalPath)
			return
		}
		redirectSuccess(w, r, guard.SafeCallback(r.FormValue(guard.CallbackParam)))
	}
}

// LogoutHandler ends the session and starts a fresh anonymous one (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sc := sessionFrom(r); sc != nil {
			if err := sc.Manager.Logout(r.Context()); err != nil {
				log.Err(err).Msg("logout could not clear the session")
			}
			s.sessions.Drop(sc.ID)
		}
		if err := s.SetSessionCookie(w, r, newSessionID(), session.Snapshot{}); err != nil {
			log.Err(err).Msg("could not reset session cookie")
		}
		redirectSuccess(w, r, RouteHome)
	}
}

// statusForError picks the response status for an error from the session
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrNetwork), errors.Is(err, session.ErrServer), errors.Is(err, session.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, apiclient.ErrRequest):
		// the backend's own 4xx, such as 409 for a taken email
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
