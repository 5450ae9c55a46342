// Package config loads service configuration from config.yaml plus
// TRUST_ENGINE_* environment overrides. Every knob has a default so the
// service boots with no file at all.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/d60-Lab/trust-engine/internal/scoring"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Wait     WaitConfig     `mapstructure:"wait"`
	Scoring  scoring.Config `mapstructure:"scoring"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	Mode           string  `mapstructure:"mode"` // gin mode: debug|release|test
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	ScoreTTL time.Duration `mapstructure:"score_ttl"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type WorkerConfig struct {
	// Count is the number of worker goroutines per process.
	Count int `mapstructure:"count"`
	// PollInterval is the idle backoff between empty claim attempts.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxAttempts is the retry ceiling before a job is dead-lettered.
	MaxAttempts int `mapstructure:"max_attempts"`
	// StaleTimeout marks processing jobs abandoned by a dead worker.
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
	// SweepInterval is how often the stale-claim sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type WaitConfig struct {
	// Timeout bounds UpsertAndWait; PollInterval is its re-check cadence.
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate_limit_rps", 50.0)
	v.SetDefault("server.rate_limit_burst", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "trust_engine.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.score_ttl", 5*time.Minute)

	v.SetDefault("sentry.environment", "development")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "trust-engine")

	v.SetDefault("worker.count", 4)
	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.max_attempts", 5)
	v.SetDefault("worker.stale_timeout", 30*time.Second)
	v.SetDefault("worker.sweep_interval", 10*time.Second)

	v.SetDefault("wait.timeout", 15*time.Second)
	v.SetDefault("wait.poll_interval", 500*time.Millisecond)

	sc := scoring.DefaultConfig()
	v.SetDefault("scoring.profile_weight", sc.ProfileWeight)
	v.SetDefault("scoring.verification_weight", sc.VerificationWeight)
	v.SetDefault("scoring.activity_weight", sc.ActivityWeight)
	v.SetDefault("scoring.engagement_weight", sc.EngagementWeight)
	v.SetDefault("scoring.activity_full_window", sc.ActivityFullWindow)
	v.SetDefault("scoring.activity_far_window", sc.ActivityFarWindow)
	v.SetDefault("scoring.activity_floor", sc.ActivityFloor)
	v.SetDefault("scoring.decay_threshold", sc.DecayThreshold)
	v.SetDefault("scoring.decay_horizon", sc.DecayHorizon)
	v.SetDefault("scoring.decay_floor", sc.DecayFloor)
	v.SetDefault("scoring.highly_active_min", sc.HighlyActiveMin)
	v.SetDefault("scoring.trusted_member_min", sc.TrustedMemberMin)
	v.SetDefault("scoring.verified_user_min", sc.VerifiedUserMin)
}

// Load reads config.yaml (working directory or ./config) and environment
// overrides, then validates. A scoring config that fails validation aborts
// startup; nothing else in the engine treats configuration as recoverable.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("TRUST_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker.count must be positive, got %d", c.Worker.Count)
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker.max_attempts must be positive, got %d", c.Worker.MaxAttempts)
	}
	if c.Worker.PollInterval <= 0 || c.Worker.StaleTimeout <= 0 || c.Worker.SweepInterval <= 0 {
		return fmt.Errorf("worker intervals must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}
