package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeInvalid = "invalid"
)

// Metrics holds all Prometheus metrics for the portal
type Metrics struct {
	Logins             *prometheus.CounterVec
	TokenRefreshes     *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	ContactSubmissions *prometheus.CounterVec
	ChatCompletions    *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics with reg. A nil registerer uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by method and outcome",
		}, []string{"method", "outcome"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_token_refreshes_total",
			Help: "Access token refreshes by outcome",
		}, []string{"outcome"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portal_active_sessions",
			Help: "Session contexts currently authenticated",
		}),
		ContactSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_contact_submissions_total",
			Help: "Contact form submissions by outcome",
		}, []string{"outcome"}),
		ChatCompletions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_chat_completions_total",
			Help: "Chat widget completions by outcome",
		}, []string{"outcome"}),
	}
}

// NewNoop returns metrics registered against a throwaway registry, for tests and tools
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveLogin(method, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionAuthenticated(delta float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(delta)
}

func (m *Metrics) ObserveContact(outcome string) {
	if m == nil {
		return
	}
	m.ContactSubmissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveChat(outcome string) {
	if m == nil {
		return
	}
	m.ChatCompletions.WithLabelValues(outcome).Inc()
}
