package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-portal/chat"
	"github.com/jrsteele09/go-portal/contact"
	"github.com/jrsteele09/go-portal/dashboard"
	"github.com/jrsteele09/go-portal/guard"
	"github.com/jrsteele09/go-portal/internal/config"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/server/authflowrepo"
	"github.com/jrsteele09/go-portal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	sessions   *session.Registry
	authState  authflowrepo.Repo
	guard      *guard.Guard
	dashboard  *dashboard.Service
	contact    *contact.Service
	chat       *chat.Client
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	pages      *pages
	cookieKey  []byte
	googleOidc *OidcConfig
	oidcLock   sync.Mutex
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithContactService enables POST /api/contact
func WithContactService(c *contact.Service) Option {
	return func(s *Server) {
		s.contact = c
	}
}

// WithChatClient enables POST /api/chat
func WithChatClient(c *chat.Client) Option {
	return func(s *Server) {
		s.chat = c
	}
}

// WithMetrics exposes m's registry at /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

func WithGuard(g *guard.Guard) Option {
	return func(s *Server) {
		s.guard = g
	}
}

// WithGoogleOidc sets the Google sign-in configuration instead of discovering it
func WithGoogleOidc(c *OidcConfig) Option {
	return func(s *Server) {
		s.googleOidc = c
	}
}

func New(config config.Config, sessions *session.Registry, authStateRepo authflowrepo.Repo, options ...Option) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("[Server New] session registry is required")
	}
	if authStateRepo == nil {
		return nil, errors.New("[Server New] auth state repo is required")
	}
	secret := config.GetSessionSecret()
	if len(secret) < 16 {
		return nil, errors.New("[Server New] session secret of at least 16 characters is required")
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		sessions:  sessions,
		authState: authStateRepo,
		guard:     guard.New(),
		dashboard: dashboard.New(),
		cookieKey: []byte(secret),
	}
	for _, opt := range options {
		opt(s)
	}
	s.env = config.GetEnv()

	pages, err := loadPages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to load templates: %w", err)
	}
	s.pages = pages

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
