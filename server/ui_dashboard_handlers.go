package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-portal/dashboard"
	"github.com/jrsteele09/go-portal/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DashboardView is the model of every dashboard page
type DashboardView struct {
	ActivePage string
	Plans      []dashboard.Plan
	Invoices   []dashboard.Invoice
	Requests   []dashboard.ServiceRequest
	Services   []ServiceOffering
	// Partial is set when some data could not be loaded
	Partial string
}

// renderDashboardPage renders a page with the dashboard navigation
func (s *Server) renderDashboardPage(w http.ResponseWriter, r *http.Request, status int, name, title string, view DashboardView, form any) {
	view.ActivePage = name
	data := s.pageData(w, r, title)
	data.Data = view
	if form != nil {
		data.Form = form
	}
	s.render(w, status, name, data)
}

// dashboardFailure handles a backend error on a dashboard page
func (s *Server) dashboardFailure(w http.ResponseWriter, r *http.Request, err error, returnTo string) {
	if s.sessionErrorRedirect(w, r, err, returnTo) {
		return
	}
	log.Warn().Err(err).Str("path", r.URL.Path).Msg("dashboard request failed")
	s.renderError(w, r, statusForError(err), session.UserMessage(err))
}

// DashboardHandler renders the overview; invoices and requests load concurrently
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api := sessionFrom(r).Manager.API()
		var view DashboardView

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			invoices, err := s.dashboard.MyInvoices(ctx, api)
			view.Invoices = invoices
			return err
		})
		g.Go(func() error {
			requests, err := s.dashboard.Requests(ctx, api)
			view.Requests = requests
			return err
		})
		if err := g.Wait(); err != nil {
			if errors.Is(err, session.ErrSessionExpired) {
				s.dashboardFailure(w, r, err, "")
				return
			}
			log.Warn().Err(err).Msg("dashboard overview incomplete")
			view.Partial = session.UserMessage(err)
		}
		s.renderDashboardPage(w, r, http.StatusOK, "dashboard", "Dashboard", view, nil)
	}
}

func (s *Server) PlansHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := s.dashboard.Plans(r.Context(), sessionFrom(r).Manager.API())
		if err != nil {
			s.dashboardFailure(w, r, err, "")
			return
		}
		s.renderDashboardPage(w, r, http.StatusOK, "plans", "Plans", DashboardView{Plans: plans}, nil)
	}
}

// SubscribePlanHandler handles POST /dashboard/plans
func (s *Server) SubscribePlanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		err := s.dashboard.SubscribePlan(r.Context(), sessionFrom(r).Manager.API(), r.FormValue("planId"))
		if err != nil {
			if s.sessionErrorRedirect(w, r, err, RouteDashboardPlans) {
				return
			}
			log.Warn().Err(err).Msg("plan subscription failed")
			redirectWithError(w, r, RouteDashboardPlans, session.UserMessage(err))
			return
		}
		setFlash(w, r, "Your plan has been updated.")
		redirectSuccess(w, r, RouteDashboardPlans)
	}
}

func (s *Server) InvoicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoices, err := s.dashboard.MyInvoices(r.Context(), sessionFrom(r).Manager.API())
		if err != nil {
			s.dashboardFailure(w, r, err, "")
			return
		}
		s.renderDashboardPage(w, r, http.StatusOK, "invoices", "Invoices", DashboardView{Invoices: invoices}, nil)
	}
}

// RequestsHandler lists the customer's service requests with a form for a new one
func (s *Server) RequestsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := s.dashboard.Requests(r.Context(), sessionFrom(r).Manager.API())
		if err != nil {
			s.dashboardFailure(w, r, err, "")
			return
		}
		view := DashboardView{Requests: requests, Services: serviceCatalog}
		s.renderDashboardPage(w, r, http.StatusOK, "requests", "Services", view, dashboard.NewRequest{})
	}
}

// CreateRequestHandler handles POST /dashboard/services
func (s *Server) CreateRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		req := dashboard.NewRequest{
			Title:       r.FormValue("title"),
			Service:     r.FormValue("service"),
			Description: r.FormValue("description"),
		}
		api := sessionFrom(r).Manager.API()
		if _, err := s.dashboard.CreateRequest(r.Context(), api, req); err != nil {
			if s.sessionErrorRedirect(w, r, err, RouteDashboardServices) {
				return
			}
			requests, listErr := s.dashboard.Requests(r.Context(), api)
			if listErr != nil {
				log.Warn().Err(listErr).Msg("could not reload requests")
			}
			data := s.pageData(w, r, "Services")
			data.Error = session.UserMessage(err)
			data.Fields = session.FieldErrors(err)
			data.Form = req
			data.Data = DashboardView{ActivePage: "requests", Requests: requests, Services: serviceCatalog}
			s.render(w, statusForError(err), "requests", data)
			return
		}
		setFlash(w, r, "Your request has been submitted.")
		redirectSuccess(w, r, RouteDashboardServices)
	}
}

// SettingsHandler shows the signed-in account
func (s *Server) SettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderDashboardPage(w, r, http.StatusOK, "settings", "Settings", DashboardView{}, nil)
	}
}
