package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-portal/guard"
	"github.com/jrsteele09/go-portal/session"
	"github.com/jrsteele09/go-portal/users"
	"github.com/rs/zerolog/log"
)

// RegisterPageHandler renders the sign-up form (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(w, r, "Create an account")
		data.Form = session.Registration{}
		s.render(w, http.StatusOK, "register", data)
	}
}

// RegisterSubmissionHandler creates the account and sends the user to sign in (POST /register)
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		reg := session.Registration{
			Email:           r.FormValue("email"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirmPassword"),
			FirstName:       r.FormValue("firstName"),
			LastName:        r.FormValue("lastName"),
			Phone:           r.FormValue("phone"),
			Company:         r.FormValue("company"),
			Website:         r.FormValue("website"),
		}

		msg, err := sessionFrom(r).Manager.Register(r.Context(), reg)
		if err != nil {
			log.Info().Err(err).Msg("registration rejected")
			data := s.pageData(w, r, "Create an account")
			data.Error = session.UserMessage(err)
			data.Fields = session.FieldErrors(err)
			// never echo passwords
			reg.Password, reg.ConfirmPassword = "", ""
			data.Form = reg
			s.render(w, statusForError(err), "register", data)
			return
		}

		setFlash(w, r, msg)
		redirectSuccess(w, r, guard.LoginPath+"?email="+url.QueryEscape(reg.Email))
	}
}

// ValidatePasswordHandler checks password strength for the sign-up form as the user types
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		password := r.FormValue("password")
		w.Header().Set("Content-Type", contentTypeHTML)
		if password == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := users.ValidatePasswordStrength(password); err != nil {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<span class="field-error">%s</span>`, template.HTMLEscapeString(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `<span class="field-ok">Strong password</span>`)
	}
}

// PendingApprovalHandler tells a signed-in but unapproved user to wait (GET /pending-approval)
func (s *Server) PendingApprovalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr := sessionFrom(r).Manager
		if !mgr.IsAuthenticated() {
			redirectSuccess(w, r, guard.LoginPath)
			return
		}
		if mgr.IsApproved() {
			redirectSuccess(w, r, guard.DashboardPath)
			return
		}
		s.render(w, http.StatusOK, "pending", s.pageData(w, r, "Awaiting approval"))
	}
}

// PendingApprovalCheckHandler asks the backend whether the account was approved (POST /pending-approval/check)
func (s *Server) PendingApprovalCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr := sessionFrom(r).Manager
		if !mgr.IsAuthenticated() {
			redirectSuccess(w, r, guard.LoginPath)
			return
		}

		approved, err := mgr.CheckApproval(r.Context())
		switch {
		case err != nil:
			if s.sessionErrorRedirect(w, r, err, guard.PendingApprovalPath) {
				return
			}
			log.Warn().Err(err).Msg("approval check failed")
			setFlash(w, r, session.UserMessage(err))
			redirectSuccess(w, r, guard.PendingApprovalPath)
		case approved:
			s.refreshSessionCookie(w, r)
			setFlash(w, r, "Your account has been approved. Welcome!")
			redirectSuccess(w, r, guard.DashboardPath)
		default:
			setFlash(w, r, "Your account is still awaiting approval.")
			redirectSuccess(w, r, guard.PendingApprovalPath)
		}
	}
}
