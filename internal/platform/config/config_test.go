package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, GatewaySandbox, cfg.Gateway.Mode)
	assert.True(t, decimal.NewFromInt(1000).Equal(cfg.Workflow.DefaultThreshold))
	assert.Equal(t, 3, cfg.Workflow.MaxRetries)
	assert.Equal(t, 70, cfg.Workflow.ManualReviewThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Workflow.IdleTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.MaxWait)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.Limits.Enabled)
	assert.Equal(t, 10, cfg.Limits.StartPerWindow)
	assert.Equal(t, time.Minute, cfg.Limits.Window)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KYCFLOW_ADDR", ":9090")
	t.Setenv("KYCFLOW_STORE", "redis")
	t.Setenv("KYCFLOW_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KYCFLOW_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("KYCFLOW_WORKFLOW_THRESHOLD", "2500.50")
	t.Setenv("KYCFLOW_WORKFLOW_IDLE_TIMEOUT", "5m")
	t.Setenv("KYCFLOW_WORKFLOW_MAX_WAIT", "2m")
	t.Setenv("KYCFLOW_RATELIMIT_ENABLED", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "2500.5", cfg.Workflow.DefaultThreshold.String())
	assert.Equal(t, 5*time.Minute, cfg.Workflow.IdleTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Workflow.MaxWait)
	assert.False(t, cfg.Limits.Enabled)
}

func TestFromEnv_Invalid(t *testing.T) {
	httpMode := map[string]string{
		"KYCFLOW_GATEWAY_MODE":          "http",
		"KYCFLOW_GATEWAY_DOCUMENT_URL":  "https://documents.example.com",
		"KYCFLOW_GATEWAY_BIOMETRIC_URL": "https://liveness.example.com",
	}
	cases := map[string]map[string]string{
		"redis without url":      {"KYCFLOW_STORE": "redis"},
		"postgres without dsn":   {"KYCFLOW_STORE": "postgres"},
		"unknown store":          {"KYCFLOW_STORE": "etcd"},
		"http gateway no urls":   {"KYCFLOW_GATEWAY_MODE": "http"},
		"http gateway dev key":   httpMode,
		"bad threshold":          {"KYCFLOW_WORKFLOW_THRESHOLD": "lots"},
		"negative threshold":     {"KYCFLOW_WORKFLOW_THRESHOLD": "-1"},
		"review threshold >100":  {"KYCFLOW_WORKFLOW_MANUAL_REVIEW_THRESHOLD": "101"},
		"zero rate limit window": {"KYCFLOW_RATELIMIT_WINDOW": "0s"},
		"zero sweep interval":    {"KYCFLOW_WORKFLOW_SWEEP_INTERVAL": "0s"},
		"zero idle timeout":      {"KYCFLOW_WORKFLOW_IDLE_TIMEOUT": "0s"},
		"zero max wait":          {"KYCFLOW_WORKFLOW_MAX_WAIT": "0s"},
		"max wait beyond idle":   {"KYCFLOW_WORKFLOW_IDLE_TIMEOUT": "5m", "KYCFLOW_WORKFLOW_MAX_WAIT": "10m"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_HTTPGatewayWithSigningKey(t *testing.T) {
	t.Setenv("KYCFLOW_GATEWAY_MODE", "http")
	t.Setenv("KYCFLOW_GATEWAY_DOCUMENT_URL", "https://documents.example.com")
	t.Setenv("KYCFLOW_GATEWAY_BIOMETRIC_URL", "https://liveness.example.com")
	t.Setenv("KYCFLOW_GATEWAY_STATE_SIGNING_KEY", "9f1c7a2e5b-production-key")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, GatewayHTTP, cfg.Gateway.Mode)
	assert.Equal(t, "9f1c7a2e5b-production-key", cfg.Gateway.StateSigningKey)
}
