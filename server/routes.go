package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	page := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.PageMiddleware()...)
	}
	api := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.APIMiddleware()...)
	}
	static := func(h http.HandlerFunc) http.HandlerFunc {
		return ChainMiddleware(h, s.HTMLMiddleWare(s.CacheMiddleware, s.CompressionMiddleware)...)
	}

	// MARKETING
	s.RegisterRouteFunc("GET "+RouteHome, page(s.IndexHandler()))
	s.RegisterRouteFunc("GET "+RoutePricing, page(s.PricingHandler()))
	s.RegisterRouteFunc("GET "+RoutePortfolio, page(s.PortfolioHandler()))
	s.RegisterRouteFunc("GET "+RouteServices, page(s.ServicesHandler()))
	s.RegisterRouteFunc("GET "+RouteServiceDetail, page(s.ServiceDetailHandler()))
	s.RegisterRouteFunc("GET "+RouteContact, page(s.ContactPageHandler()))

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, page(s.LoginPageHandler()))
	s.RegisterRouteFunc("POST "+RouteLogin, page(s.LoginSubmissionHandler()))
	s.RegisterRouteFunc("POST "+RouteLogout, page(s.LogoutHandler()))
	s.RegisterRouteFunc("GET "+RouteGoogleLogin, page(s.GoogleLoginHandler()))
	s.RegisterRouteFunc("GET "+RouteGoogleCallback, page(s.GoogleCallbackHandler()))

	// SIGNUP
	s.RegisterRouteFunc("GET "+RouteRegister, page(s.RegisterPageHandler()))
	s.RegisterRouteFunc("POST "+RouteRegister, page(s.RegisterSubmissionHandler()))
	s.RegisterRouteFunc("GET "+RoutePendingApproval, page(s.PendingApprovalHandler()))
	s.RegisterRouteFunc("POST "+RoutePendingApprovalCheck, page(s.PendingApprovalCheckHandler()))

	// DASHBOARD
	s.RegisterRouteFunc("GET "+RouteDashboard, page(s.DashboardHandler()))
	s.RegisterRouteFunc("GET "+RouteDashboardPlans, page(s.PlansHandler()))
	s.RegisterRouteFunc("POST "+RouteDashboardPlans, page(s.SubscribePlanHandler()))
	s.RegisterRouteFunc("GET "+RouteDashboardInvoices, page(s.InvoicesHandler()))
	s.RegisterRouteFunc("GET "+RouteDashboardServices, page(s.RequestsHandler()))
	s.RegisterRouteFunc("POST "+RouteDashboardServices, page(s.CreateRequestHandler()))
	s.RegisterRouteFunc("GET "+RouteDashboardSettings, page(s.SettingsHandler()))

	// API routes
	s.RegisterRouteFunc("POST "+RouteAPIContact, api(s.ContactAPIHandler()))
	s.RegisterRouteFunc("OPTIONS "+RouteAPIContact, api(noContent))
	s.RegisterRouteFunc("POST "+RouteAPIChat, api(s.ChatAPIHandler()))
	s.RegisterRouteFunc("OPTIONS "+RouteAPIChat, api(noContent))
	s.RegisterRouteFunc("POST "+RouteAPIValidatePassword, api(s.ValidatePasswordHandler()))

	// OPERATIONS
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.MetricsHandler())

	s.RegisterRouteFunc("GET "+RouteStaticCSS, static(s.serveFileHandler()))
	s.RegisterRouteFunc("GET "+RouteStaticJS, static(s.serveFileHandler()))
	s.RegisterRouteFunc("GET "+RouteStaticImages, static(s.serveFileHandler()))
	s.RegisterRouteFunc("GET "+RouteFavicon, static(s.serveFileHandler()))
}

// noContent answers preflight requests once CorsMiddleware has set its headers
func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
