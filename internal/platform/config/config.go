package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Gateway modes.
const (
	GatewaySandbox = "sandbox"
	GatewayHTTP    = "http"
)

// DevStateSigningKey is the sandbox default. It is rejected in http mode.
const DevStateSigningKey = "dev-state-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server   Server
	Store    string
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Workflow WorkflowConfig
	Limits   RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
}

// RedisConfig holds connection settings for the redis session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig enables outcome publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type GatewayConfig struct {
	Mode             string
	DocumentURL      string
	BiometricURL     string
	APIKey           string
	ReturnURL        string
	StateSigningKey  string
	StateTTL         time.Duration
	RequestTimeout   time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	StatusCacheTTL   time.Duration
}

// WorkflowConfig carries the tier threshold and engine policy knobs.
type RateLimitConfig struct {
	Enabled        bool
	StartPerWindow int
	APIPerWindow   int
	Window         time.Duration
}

type WorkflowConfig struct {
	DefaultThreshold      decimal.Decimal
	MaxRetries            int
	ManualReviewThreshold int
	IdleTimeout           time.Duration
	MaxWait               time.Duration
	SweepInterval         time.Duration
}

// FromEnv builds the config from KYCFLOW_* environment variables so main stays lean.
// Nested keys map with underscores: redis.url reads KYCFLOW_REDIS_URL.
func FromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KYCFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("store", StoreMemory)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "verification-outcomes")

	v.SetDefault("gateway.mode", GatewaySandbox)
	v.SetDefault("gateway.document_url", "")
	v.SetDefault("gateway.biometric_url", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.return_url", "http://localhost:8080/v1/verification/return")
	v.SetDefault("gateway.state_signing_key", DevStateSigningKey)
	v.SetDefault("gateway.state_ttl", 15*time.Minute)
	v.SetDefault("gateway.request_timeout", 10*time.Second)
	v.SetDefault("gateway.failure_threshold", 5)
	v.SetDefault("gateway.cooldown", 30*time.Second)
	v.SetDefault("gateway.status_cache_ttl", 10*time.Minute)

	v.SetDefault("workflow.threshold", "1000")
	v.SetDefault("workflow.max_retries", 3)
	v.SetDefault("workflow.manual_review_threshold", 70)
	v.SetDefault("workflow.idle_timeout", 30*time.Minute)
	v.SetDefault("workflow.max_wait", 10*time.Minute)
	v.SetDefault("workflow.sweep_interval", time.Minute)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.start_per_window", 10)
	v.SetDefault("ratelimit.api_per_window", 300)
	v.SetDefault("ratelimit.window", time.Minute)
}

func load(v *viper.Viper) (Config, error) {
	threshold, err := decimal.NewFromString(v.GetString("workflow.threshold"))
	if err != nil {
		return Config{}, fmt.Errorf("parse workflow threshold: %w", err)
	}

	cfg := Config{
		Server: Server{
			Addr:     v.GetString("addr"),
			LogLevel: v.GetString("log.level"),
		},
		Store: strings.ToLower(v.GetString("store")),
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Postgres: PostgresConfig{
			DSN:          v.GetString("postgres.dsn"),
			MaxOpenConns: v.GetInt("postgres.max_open_conns"),
			MaxIdleConns: v.GetInt("postgres.max_idle_conns"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Gateway: GatewayConfig{
			Mode:             strings.ToLower(v.GetString("gateway.mode")),
			DocumentURL:      v.GetString("gateway.document_url"),
			BiometricURL:     v.GetString("gateway.biometric_url"),
			APIKey:           v.GetString("gateway.api_key"),
			ReturnURL:        v.GetString("gateway.return_url"),
			StateSigningKey:  v.GetString("gateway.state_signing_key"),
			StateTTL:         v.GetDuration("gateway.state_ttl"),
			RequestTimeout:   v.GetDuration("gateway.request_timeout"),
			FailureThreshold: v.GetInt("gateway.failure_threshold"),
			Cooldown:         v.GetDuration("gateway.cooldown"),
			StatusCacheTTL:   v.GetDuration("gateway.status_cache_ttl"),
		},
		Workflow: WorkflowConfig{
			DefaultThreshold:      threshold,
			MaxRetries:            v.GetInt("workflow.max_retries"),
			ManualReviewThreshold: v.GetInt("workflow.manual_review_threshold"),
			IdleTimeout:           v.GetDuration("workflow.idle_timeout"),
			MaxWait:               v.GetDuration("workflow.max_wait"),
			SweepInterval:         v.GetDuration("workflow.sweep_interval"),
		},
		Limits: RateLimitConfig{
			Enabled:        v.GetBool("ratelimit.enabled"),
			StartPerWindow: v.GetInt("ratelimit.start_per_window"),
			APIPerWindow:   v.GetInt("ratelimit.api_per_window"),
			Window:         v.GetDuration("ratelimit.window"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("store %q requires KYCFLOW_REDIS_URL", c.Store)
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("store %q requires KYCFLOW_POSTGRES_DSN", c.Store)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}

	switch c.Gateway.Mode {
	case GatewaySandbox:
	case GatewayHTTP:
		if c.Gateway.DocumentURL == "" || c.Gateway.BiometricURL == "" {
			return fmt.Errorf("gateway mode %q requires document and biometric vendor URLs", c.Gateway.Mode)
		}
		if c.Gateway.StateSigningKey == DevStateSigningKey {
			return fmt.Errorf("gateway mode %q requires KYCFLOW_GATEWAY_STATE_SIGNING_KEY", c.Gateway.Mode)
		}
	default:
		return fmt.Errorf("unknown gateway mode %q", c.Gateway.Mode)
	}
	if c.Gateway.StateSigningKey == "" {
		return fmt.Errorf("state signing key must not be empty")
	}

	if c.Workflow.DefaultThreshold.IsNegative() {
		return fmt.Errorf("workflow threshold must not be negative")
	}
	if c.Workflow.MaxRetries < 0 {
		return fmt.Errorf("workflow max retries must not be negative")
	}
	if c.Workflow.ManualReviewThreshold < 0 || c.Workflow.ManualReviewThreshold > 100 {
		return fmt.Errorf("manual review threshold must be within 0-100")
	}
	if c.Workflow.IdleTimeout <= 0 || c.Workflow.MaxWait <= 0 || c.Workflow.SweepInterval <= 0 {
		return fmt.Errorf("workflow idle timeout, max wait and sweep interval must be positive")
	}
	// Pending polls do not count as activity, so a check must time out
	// before its session can go idle.
	if c.Workflow.MaxWait >= c.Workflow.IdleTimeout {
		return fmt.Errorf("workflow max wait must be shorter than the idle timeout")
	}
	if c.Limits.Enabled && c.Limits.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
