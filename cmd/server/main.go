// Command lyceum-server starts the portal HTTP API and Telegram webhook receiver.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/lyceum-portal/internal/assistant"
	"github.com/and161185/lyceum-portal/internal/bot"
	"github.com/and161185/lyceum-portal/internal/config"
	"github.com/and161185/lyceum-portal/internal/initdata"
	"github.com/and161185/lyceum-portal/internal/limiter"
	"github.com/and161185/lyceum-portal/internal/llm"
	"github.com/and161185/lyceum-portal/internal/metrics"
	"github.com/and161185/lyceum-portal/internal/migrate"
	"github.com/and161185/lyceum-portal/internal/repository/postgres"
	httpserver "github.com/and161185/lyceum-portal/internal/server/http"
	"github.com/and161185/lyceum-portal/internal/service"
	"github.com/and161185/lyceum-portal/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, wires services and serves HTTP until signalled.
func main() {
	cfgPath := flag.String("config", "", "optional config file (yaml, toml or json)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envFile)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("config", zap.Error(err))
	}

	var logger *zap.Logger
	if cfg.Dev() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("limiter", cfg.Limiter.Backend),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schema, err := migrate.Up(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema ready", zap.Int64("version", schema))

	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	accounts := postgres.NewAccountRepo(db)
	admins := postgres.NewAdminRepo(db)
	knowledge := postgres.NewKnowledgeRepo(db)
	chats := postgres.NewChatRepo(db)
	categories := postgres.NewCategoryRepo(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy := limiter.Policy{
		MaxAttempts: cfg.Limiter.MaxAttempts,
		Window:      cfg.Limiter.Window,
		Lockout:     cfg.Limiter.Lockout,
	}
	var lim limiter.Limiter
	switch cfg.Limiter.Backend {
	case config.LimiterPostgres:
		lim = limiter.NewPG(db.Pool, policy, time.Now)
	case config.LimiterRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		lim = limiter.NewRedis(rdb, cfg.Redis.Prefix, policy, time.Now)
	default:
		logger.Warn("in-memory login limiter: lockouts are not shared between instances")
		lim = limiter.NewMemory(policy, time.Now)
	}

	// Sessions
	signed, err := session.NewSigned([]byte(cfg.Session.SigningKey), cfg.Session.Issuer, time.Now)
	if err != nil {
		logger.Fatal("session signer", zap.Error(err))
	}
	var adminTokens session.Issuer = signed.WithAudience(session.AudienceAdmin)
	if cfg.Session.CompatMode {
		logger.Warn("session compat mode: admin tokens are unsigned and can be forged by any client")
		adminTokens = session.NewLegacy([]string{session.CapabilityAdmin}, time.Now)
	}

	var vopts []initdata.Option
	if cfg.Telegram.InitDataMaxAge > 0 {
		vopts = append(vopts, initdata.WithMaxAge(cfg.Telegram.InitDataMaxAge))
	}
	verifier := initdata.NewVerifier(cfg.Telegram.BotToken, vopts...)

	// Services
	prov := service.NewProvisioner(accounts, logger)
	authSvc := service.NewAuthService(admins, lim, adminTokens, logger, m)
	bootSvc := service.NewBootstrapService(cfg.Admin.SecretKey, admins, accounts, prov, cfg.Admin.BcryptCost, logger)
	miniSvc := service.NewMiniAppService(verifier, prov, accounts, signed.WithAudience(session.AudienceMiniApp), cfg.Session.MiniAppTTL, cfg.WebApp.URL, logger, m)
	if cfg.Admin.SecretKey == "" {
		logger.Warn("admin.secret_key is empty: create-admin and set-admin reject every request")
	}

	gateway := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxAttempts,
	}, logger, m)
	helper := assistant.New(knowledge, chats, gateway, logger)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("telegram bot api", zap.Error(err))
	}
	api.Debug = cfg.Dev()
	logger.Info("telegram bot", zap.String("username", api.Self.UserName))
	tg := bot.New(api, accounts, categories, prov, helper, cfg.WebApp.URL, logger, m)
	switch {
	case cfg.Telegram.WebhookURL != "":
		if err := bot.RegisterWebhook(api, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal("telegram webhook", zap.Error(err))
		}
		logger.Info("telegram webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
	case cfg.Telegram.WebhookSecret == "":
		logger.Warn("telegram.webhook_secret is empty: webhook calls are not authenticated")
	}

	app := httpserver.New(authSvc, bootSvc, miniSvc, tg, httpserver.Options{
		WebhookTimeout: cfg.HTTP.WebhookTimeout,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		Gatherer:       reg,
	}, logger, m)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
