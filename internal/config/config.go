// Package config loads server configuration from defaults, an optional file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Limiter backends.
const (
	LimiterMemory   = "memory"
	LimiterPostgres = "postgres"
	LimiterRedis    = "redis"
)

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr            string
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		WebhookTimeout  time.Duration `mapstructure:"webhook_timeout"`
	} `mapstructure:"http"`

	Telegram struct {
		BotToken       string        `mapstructure:"bot_token"`
		InitDataMaxAge time.Duration `mapstructure:"initdata_max_age"`
		WebhookURL     string        `mapstructure:"webhook_url"`
		WebhookSecret  string        `mapstructure:"webhook_secret"`
	} `mapstructure:"telegram"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	} `mapstructure:"redis"`

	Limiter struct {
		Backend     string
		MaxAttempts int `mapstructure:"max_attempts"`
		Window      time.Duration
		Lockout     time.Duration
	} `mapstructure:"limiter"`

	Session struct {
		SigningKey string `mapstructure:"signing_key"`
		Issuer     string
		CompatMode bool          `mapstructure:"compat_mode"`
		MiniAppTTL time.Duration `mapstructure:"miniapp_ttl"`
	} `mapstructure:"session"`

	Admin struct {
		SecretKey  string `mapstructure:"secret_key"`
		BcryptCost int    `mapstructure:"bcrypt_cost"`
	} `mapstructure:"admin"`

	LLM struct {
		BaseURL     string `mapstructure:"base_url"`
		APIKey      string `mapstructure:"api_key"`
		Model       string
		Timeout     time.Duration
		MaxAttempts int `mapstructure:"max_attempts"`
	} `mapstructure:"llm"`

	WebApp struct {
		URL string
	} `mapstructure:"webapp"`
}

// Dev reports whether the server runs in development mode.
func (c Config) Dev() bool { return c.App.Env == "dev" }

// secretEnv maps keys to conventional environment names checked before the LYCEUM_ ones.
var secretEnv = map[string]string{
	"telegram.bot_token":      "TELEGRAM_BOT_TOKEN",
	"telegram.webhook_secret": "TELEGRAM_WEBHOOK_SECRET",
	"admin.secret_key":        "ADMIN_SECRET_KEY",
	"session.signing_key":     "SESSION_SIGNING_KEY",
	"llm.api_key":             "LLM_API_KEY",
	"postgres.dsn":            "DATABASE_URL",
	"redis.addr":              "REDIS_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.webhook_timeout", 50*time.Second)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.initdata_max_age", time.Duration(0))
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "lyceum:login:")
	v.SetDefault("limiter.backend", LimiterMemory)
	v.SetDefault("limiter.max_attempts", 5)
	v.SetDefault("limiter.window", 15*time.Minute)
	v.SetDefault("limiter.lockout", 30*time.Minute)
	v.SetDefault("session.signing_key", "")
	v.SetDefault("session.issuer", "lyceum-portal")
	v.SetDefault("session.compat_mode", false)
	v.SetDefault("session.miniapp_ttl", 24*time.Hour)
	v.SetDefault("admin.secret_key", "")
	v.SetDefault("admin.bcrypt_cost", 12)
	v.SetDefault("llm.base_url", "https://ai.gateway.lovable.dev/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "google/gemini-2.5-flash")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("webapp.url", "")
}

// Load reads configuration. path may be empty; envFile is loaded if it exists
// and never overrides variables already set in the environment.
func Load(path, envFile string) (Config, error) {
	var c Config
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return c, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LYCEUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range secretEnv {
		if err := v.BindEnv(key, env, "LYCEUM_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return c, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// webhookSecretRe is the character set Telegram accepts for secret_token.
var webhookSecretRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Validate checks settings required by the server.
func (c Config) Validate() error {
	var problems []string
	if c.Postgres.DSN == "" {
		problems = append(problems, "postgres.dsn (DATABASE_URL) is required")
	}
	if c.Telegram.BotToken == "" {
		problems = append(problems, "telegram.bot_token (TELEGRAM_BOT_TOKEN) is required")
	}
	if c.Session.SigningKey == "" {
		problems = append(problems, "session.signing_key (SESSION_SIGNING_KEY) is required")
	}
	if c.Telegram.WebhookSecret != "" && !webhookSecretRe.MatchString(c.Telegram.WebhookSecret) {
		problems = append(problems, "telegram.webhook_secret must be 1-256 characters of A-Z, a-z, 0-9, _ and -")
	}
	if c.Telegram.WebhookURL != "" && c.Telegram.WebhookSecret == "" {
		problems = append(problems, "telegram.webhook_secret (TELEGRAM_WEBHOOK_SECRET) is required when telegram.webhook_url is set")
	}
	switch c.Limiter.Backend {
	case LimiterMemory, LimiterPostgres:
	case LimiterRedis:
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr (REDIS_ADDR) is required for the redis limiter")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown limiter.backend %q", c.Limiter.Backend))
	}
	if c.Limiter.MaxAttempts <= 0 || c.Limiter.Lockout <= 0 {
		problems = append(problems, "limiter.max_attempts and limiter.lockout must be positive")
	}
	if c.Session.MiniAppTTL <= 0 {
		problems = append(problems, "session.miniapp_ttl must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}
