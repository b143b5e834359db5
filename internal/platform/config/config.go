package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/peteonrails/vote-fu/internal/domain"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	AllowRecast         bool    `env:"ALLOW_RECAST" default:"true"`
	AllowDuplicateVotes bool    `env:"ALLOW_DUPLICATE_VOTES" default:"false"`
	AllowSelfVote       bool    `env:"ALLOW_SELF_VOTE" default:"false"`
	CounterCache        bool    `env:"COUNTER_CACHE" default:"true"`
	DefaultRanking      string  `env:"DEFAULT_RANKING" default:"wilson"`
	HotGravity          float64 `env:"HOT_GRAVITY" default:"1.8"`
	WilsonConfidence    float64 `env:"WILSON_CONFIDENCE" default:"0.95"`

	KarmaCacheTTL     time.Duration `env:"KARMA_CACHE_TTL" default:"15m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" default:"5m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Options maps the environment surface onto the vote engine's options.
func (c *Config) Options() domain.Options {
	return domain.Options{
		AllowRecast:         c.AllowRecast,
		AllowDuplicateVotes: c.AllowDuplicateVotes,
		AllowSelfVote:       c.AllowSelfVote,
		CounterCache:        c.CounterCache,
		DefaultRanking:      domain.RankingAlgorithm(c.DefaultRanking),
		HotGravity:          c.HotGravity,
		WilsonConfidence:    c.WilsonConfidence,
	}
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if !domain.RankingAlgorithm(cfg.DefaultRanking).Valid() {
		return fmt.Errorf("DEFAULT_RANKING must be one of wilson, hot, hackernews; got %q", cfg.DefaultRanking)
	}
	if cfg.HotGravity <= 0 {
		return fmt.Errorf("HOT_GRAVITY must be positive, got %v", cfg.HotGravity)
	}
	if cfg.WilsonConfidence <= 0 || cfg.WilsonConfidence >= 1 {
		return fmt.Errorf("WILSON_CONFIDENCE must be in (0, 1), got %v", cfg.WilsonConfidence)
	}

	if cfg.AppEnv == "production" {
		if err := validateProductionSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateProductionSSL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
