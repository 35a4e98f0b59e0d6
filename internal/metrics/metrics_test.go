package metrics_test

import (
	"testing"

	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.NewNoop()
	m.ObserveLogin("credentials", metrics.OutcomeSuccess)
	m.ObserveLogin("credentials", metrics.OutcomeSuccess)
	m.ObserveRefresh(metrics.OutcomeFailure)
	m.SessionAuthenticated(1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("credentials", metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues(metrics.OutcomeFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.ObserveLogin("credentials", metrics.OutcomeFailure)
		m.ObserveRefresh(metrics.OutcomeSuccess)
		m.SessionAuthenticated(-1)
		m.ObserveContact(metrics.OutcomeSuccess)
		m.ObserveChat(metrics.OutcomeSuccess)
	})
}
