package server

import (
	"net/http"
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// "GET /" also catches every unmatched path
		if r.URL.Path != RouteHome {
			s.renderNotFound(w, r)
			return
		}
		data := s.pageData(w, r, "IT services that keep you running")
		data.Data = serviceCatalog
		s.render(w, http.StatusOK, "index", data)
	}
}

func (s *Server) PricingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(w, r, "Pricing")
		data.Data = pricingTiers
		s.render(w, http.StatusOK, "pricing", data)
	}
}

func (s *Server) PortfolioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(w, r, "Portfolio")
		data.Data = portfolioProjects
		s.render(w, http.StatusOK, "portfolio", data)
	}
}

func (s *Server) ServicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(w, r, "Services")
		data.Data = serviceCatalog
		s.render(w, http.StatusOK, "services", data)
	}
}

// ServiceDetailHandler renders one service by its slug
func (s *Server) ServiceDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, ok := findService(r.PathValue("slug"))
		if !ok {
			s.renderNotFound(w, r)
			return
		}
		data := s.pageData(w, r, svc.Name)
		data.Data = svc
		s.render(w, http.StatusOK, "service", data)
	}
}

// ContactPageHandler renders the contact form; it posts to the contact API
func (s *Server) ContactPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData(w, r, "Contact us")
		data.Data = serviceCatalog
		s.render(w, http.StatusOK, "contact", data)
	}
}
