// Package httpserver exposes the portal HTTP API: admin login and bootstrap,
// Mini App login and the Telegram webhook.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/lyceum-portal/internal/metrics"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/service"
	"github.com/and161185/lyceum-portal/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AdminAuth authenticates admin panel users. Implemented by *service.AuthService.
type AdminAuth interface {
	AdminLogin(ctx context.Context, username, password string) (model.AdminSession, error)
	VerifyAdminSession(ctx context.Context, token string) (*model.AdminCredential, session.Claims, error)
}

// Bootstrapper performs secret-guarded operator actions. Implemented by *service.BootstrapService.
type Bootstrapper interface {
	CreateAdmin(ctx context.Context, secret, username, password string, fullName *string) (*model.AdminCredential, error)
	GrantAdmin(ctx context.Context, secret string, telegramID int64) (service.GrantResult, error)
}

// MiniApp logs Mini App users in. Implemented by *service.MiniAppService.
type MiniApp interface {
	Login(ctx context.Context, initData string) (model.MiniAppSession, error)
}

// UpdateHandler processes Telegram updates. Implemented by *bot.Bot.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update) error
}

// Options configures Server.
type Options struct {
	// WebhookTimeout bounds processing of one Telegram update.
	WebhookTimeout time.Duration
	// WebhookSecret must match the X-Telegram-Bot-Api-Secret-Token header of
	// webhook calls. Empty disables the check.
	WebhookSecret string
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
	// Gatherer serves /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

// Server wires services into HTTP handlers.
type Server struct {
	auth      AdminAuth
	bootstrap Bootstrapper
	miniapp   MiniApp
	bot       UpdateHandler
	opts      Options
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// New constructs a Server.
func New(auth AdminAuth, bootstrap Bootstrapper, miniapp MiniApp, bot UpdateHandler, opts Options, log *zap.Logger, m *metrics.Metrics) *Server {
	if opts.WebhookTimeout <= 0 {
		opts.WebhookTimeout = 50 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, bootstrap: bootstrap, miniapp: miniapp, bot: bot, opts: opts, log: log, metrics: m}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		s.recoverer,
		s.accessLog,
		s.instrument,
		corsAndSecurityHeaders,
		s.limitBody,
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Post("/admin-login", s.handleAdminLogin)
	r.With(s.requireAdmin).Get("/admin-session", s.handleAdminSession)
	r.Post("/create-admin", s.handleCreateAdmin)
	r.Post("/set-admin", s.handleSetAdmin)
	r.Post("/verify-init-data", s.handleVerifyInitData)
	r.Post("/telegram-bot", s.handleWebhook)
	r.Post("/telegram-webhook", s.handleWebhook)

	return r
}
