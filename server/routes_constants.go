package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Marketing
	RouteHome          = "/"
	RoutePricing       = "/pricing"
	RoutePortfolio     = "/portfolio"
	RouteServices      = "/services"
	RouteServiceDetail = "/services/{slug}"
	RouteContact       = "/contact"

	// Auth Routes - Login & Logout
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	// Auth Routes - Signup & approval
	RouteRegister             = "/register"
	RoutePendingApproval      = "/pending-approval"
	RoutePendingApprovalCheck = "/pending-approval/check"

	// Auth Routes - Google sign-in
	RouteGoogleLogin    = "/auth/oauth/google"
	RouteGoogleCallback = "/auth/callback/google"

	// Dashboard Routes
	RouteDashboard         = "/dashboard"
	RouteDashboardPlans    = "/dashboard/plans"
	RouteDashboardInvoices = "/dashboard/invoices"
	RouteDashboardServices = "/dashboard/services"
	RouteDashboardSettings = "/dashboard/settings"

	// API Routes
	RouteAPIContact = "/api/contact"
	RouteAPIChat    = "/api/chat"

	RouteAPIValidatePassword = "/api/validate-password"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS    = "/css/{file}"
	RouteStaticJS     = "/js/{file}"
	RouteStaticImages = "/images/{file}"
	RouteFavicon      = "/favicon.svg"
)
