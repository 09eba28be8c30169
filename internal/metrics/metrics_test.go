package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AdminLogin(LoginLocked)
	m.AdminLogin(LoginLocked)
	m.InitData("ok")
	m.BotUpdate("message")
	m.LLMRequest("ok")
	m.ObserveHTTP("/admin-login", "POST", "429", 0.01)

	require.Equal(t, 2.0, testutil.ToFloat64(m.adminLogins.WithLabelValues(LoginLocked)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/admin-login", "POST", "429")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Positive(t, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.AdminLogin(LoginOK)
		m.InitData("ok")
		m.LLMRequest("ok")
		m.BotUpdate("x")
		m.ObserveHTTP("/", "GET", "200", 0)
	})
}
