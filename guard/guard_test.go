package guard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	g := New()
	tests := map[string]RouteClass{
		"/":                     Public,
		"":                      Public,
		"/pricing":              Public,
		"/services/web-design":  Public,
		"/dashboard":            Protected,
		"/dashboard/":           Protected,
		"/dashboard/invoices":   Protected,
		"/dashboardish":         Public,
		"/login":                AuthOnly,
		"/register/":            AuthOnly,
		"/pending-approval":     Public,
		"/api/contact":          Public,
		"/dashboard/plans/gold": Protected,
	}
	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			require.Equal(t, want, g.Classify(path))
		})
	}
}

func TestDecide(t *testing.T) {
	g := New()
	var (
		loading    = State{Loading: true}
		anonymous  = State{}
		pending    = State{Authenticated: true}
		approved   = State{Authenticated: true, Approved: true}
		allStates  = []State{loading, anonymous, pending, approved}
		loginDash  = "/login?callbackUrl=%2Fdashboard%2Finvoices%3Fpage%3D2"
		renderPage = Decision{Action: Render}
	)

	tests := []struct {
		name  string
		state State
		path  string
		query string
		want  Decision
	}{
		{name: "anonymous protected", state: anonymous, path: "/dashboard/invoices", query: "page=2", want: Decision{Action: Redirect, Target: loginDash}},
		{name: "pending protected", state: pending, path: "/dashboard", want: Decision{Action: Redirect, Target: PendingApprovalPath}},
		{name: "approved protected", state: approved, path: "/dashboard/plans", want: renderPage},
		{name: "authenticated login", state: pending, path: "/login", want: Decision{Action: Redirect, Target: DashboardPath}},
		{name: "approved register", state: approved, path: "/register", want: Decision{Action: Redirect, Target: DashboardPath}},
		{name: "anonymous login", state: anonymous, path: "/login", want: renderPage},
		{name: "pending approval page", state: pending, path: "/pending-approval", want: renderPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, g.Decide(tt.state, tt.path, tt.query))
		})
	}

	t.Run("loading never redirects", func(t *testing.T) {
		for _, path := range []string{"/", "/dashboard", "/login", "/register", "/pricing"} {
			require.Equal(t, Decision{Action: Loading}, g.Decide(loading, path, ""), path)
		}
	})

	t.Run("public always renders", func(t *testing.T) {
		for _, s := range allStates[1:] {
			require.Equal(t, renderPage, g.Decide(s, "/pricing", ""))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, s := range allStates {
			for _, path := range []string{"/", "/dashboard", "/login"} {
				first := g.Decide(s, path, "a=b")
				for i := 0; i < 5; i++ {
					require.Equal(t, first, g.Decide(s, path, "a=b"), fmt.Sprintf("%+v %s", s, path))
				}
			}
		}
	})
}

func TestCustomClassification(t *testing.T) {
	g := New(WithProtectedPrefixes("/dashboard", "/account"), WithAuthOnlyPaths("/signin"))
	require.Equal(t, Protected, g.Classify("/account/billing"))
	require.Equal(t, AuthOnly, g.Classify("/signin"))
	require.Equal(t, Public, g.Classify("/login"))
}

func TestSafeCallback(t *testing.T) {
	tests := map[string]string{
		"":                           DashboardPath,
		"/dashboard/invoices?page=2": "/dashboard/invoices?page=2",
		"/pricing":                   "/pricing",
		"https://evil.example":       DashboardPath,
		"//evil.example/path":        DashboardPath,
		"/\\evil.example":            DashboardPath,
		"javascript:alert(1)":        DashboardPath,
		"dashboard":                  DashboardPath,
		"/ok\r\nSet-Cookie: x=y":     DashboardPath,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, SafeCallback(in))
		})
	}
}
