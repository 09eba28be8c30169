// Package metrics holds Prometheus collectors shared by the HTTP server, services and the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	LoginOK           = "ok"
	LoginInvalidInput = "invalid_input"
	LoginRejected     = "rejected"
	LoginLocked       = "locked"
	LoginError        = "error"
)

// Metrics groups collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	adminLogins  *prometheus.CounterVec
	initData     *prometheus.CounterVec
	llmRequests  *prometheus.CounterVec
	botUpdates   *prometheus.CounterVec
}

// New registers collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lyceum",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lyceum",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		adminLogins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lyceum",
			Name:      "admin_logins_total",
			Help:      "Admin login attempts by outcome.",
		}, []string{"outcome"}),
		initData: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lyceum",
			Name:      "initdata_verifications_total",
			Help:      "Mini App initData verifications by outcome.",
		}, []string{"outcome"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lyceum",
			Name:      "llm_requests_total",
			Help:      "LLM gateway calls by outcome.",
		}, []string{"outcome"}),
		botUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lyceum",
			Name:      "bot_updates_total",
			Help:      "Telegram updates by kind.",
		}, []string{"kind"}),
	}
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(seconds)
}

// AdminLogin records an admin login outcome.
func (m *Metrics) AdminLogin(outcome string) {
	if m == nil {
		return
	}
	m.adminLogins.WithLabelValues(outcome).Inc()
}

// InitData records an initData verification outcome.
func (m *Metrics) InitData(outcome string) {
	if m == nil {
		return
	}
	m.initData.WithLabelValues(outcome).Inc()
}

// LLMRequest records an LLM call outcome.
func (m *Metrics) LLMRequest(outcome string) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(outcome).Inc()
}

// BotUpdate records a processed Telegram update.
func (m *Metrics) BotUpdate(kind string) {
	if m == nil {
		return
	}
	m.botUpdates.WithLabelValues(kind).Inc()
}
