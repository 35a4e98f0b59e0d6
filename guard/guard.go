// Package guard decides, for one navigation, whether the page renders or redirects. It is
// pure: the same state and path always give the same decision.
package guard

import (
	"net/url"
	"strings"
)

// Default paths
const (
	LoginPath           = "/login"
	RegisterPath        = "/register"
	DashboardPath       = "/dashboard"
	PendingApprovalPath = "/pending-approval"
	CallbackParam       = "callbackUrl"
)

type RouteClass int

const (
	Public RouteClass = iota
	Protected
	AuthOnly
)

func (c RouteClass) String() string {
	switch c {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth-only"
	default:
		return "public"
	}
}

type Action int

const (
	Render Action = iota
	Loading
	Redirect
)

func (a Action) String() string {
	switch a {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "render"
	}
}

// State is the part of the session the guard looks at
type State struct {
	Loading       bool
	Authenticated bool
	Approved      bool
}

type Decision struct {
	Action Action
	Target string
}

// Guard holds the route classification
type Guard struct {
	protected []string
	authOnly  []string
}

// Option defines a function type to modify the Guard instance.
type Option func(*Guard)

// WithProtectedPrefixes replaces the protected path prefixes
func WithProtectedPrefixes(prefixes ...string) Option {
	return func(g *Guard) {
		g.protected = prefixes
	}
}

// WithAuthOnlyPaths replaces the pages only signed-out users should see
func WithAuthOnlyPaths(paths ...string) Option {
	return func(g *Guard) {
		g.authOnly = paths
	}
}

func New(options ...Option) *Guard {
	g := &Guard{
		protected: []string{DashboardPath},
		authOnly:  []string{LoginPath, RegisterPath},
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Classify places path in exactly one route class
func (g *Guard) Classify(path string) RouteClass {
	path = cleanPath(path)
	for _, p := range g.authOnly {
		if path == p {
			return AuthOnly
		}
	}
	for _, prefix := range g.protected {
		if path == prefix || strings.HasPrefix(path, strings.TrimRight(prefix, "/")+"/") {
			return Protected
		}
	}
	return Public
}

// Decide applies the navigation rules. rawQuery is kept on the login callback.
func (g *Guard) Decide(state State, path, rawQuery string) Decision {
	if state.Loading {
		return Decision{Action: Loading}
	}

	switch g.Classify(path) {
	case Protected:
		if !state.Authenticated {
			return Decision{Action: Redirect, Target: LoginURL(path, rawQuery)}
		}
		if !state.Approved {
			return Decision{Action: Redirect, Target: PendingApprovalPath}
		}
	case AuthOnly:
		if state.Authenticated {
			return Decision{Action: Redirect, Target: DashboardPath}
		}
	}
	return Decision{Action: Render}
}

// LoginURL is the login page with path (and query) as the callback
func LoginURL(path, rawQuery string) string {
	callback := cleanPath(path)
	if rawQuery != "" {
		callback += "?" + rawQuery
	}
	return LoginPath + "?" + url.Values{CallbackParam: {callback}}.Encode()
}

// SafeCallback returns raw when it is a same-site relative path, otherwise the dashboard
func SafeCallback(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n\t") {
		return DashboardPath
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return DashboardPath
	}
	return raw
}

func cleanPath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
