package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"SERVICE_PRINCIPAL", "HTTP_PORT",
	"LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "LIVEKIT_URL", "LIVEKIT_TOKEN_TTL",
	"SUMMARY_PROVIDER", "OPENROUTER_API_KEY", "SUMMARY_MODEL", "SUMMARY_BASE_URL", "SUMMARY_TIMEOUT",
	"TRANSFER_BRIEFING_TTL", "TRANSFER_SWEEP_INTERVAL",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_CALLS", "KAFKA_TOPIC_TRANSFERS",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "svc-warm-transfer" {
		t.Errorf("expected default principal 'svc-warm-transfer', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8000" {
		t.Errorf("expected default port '8000', got %s", cfg.Service.HTTPPort)
	}

	if cfg.LiveKit.URL != "ws://localhost:7880" {
		t.Errorf("expected default LiveKit URL, got %s", cfg.LiveKit.URL)
	}
	if cfg.LiveKit.TokenTTL != 24*time.Hour {
		t.Errorf("expected default token TTL 24h, got %v", cfg.LiveKit.TokenTTL)
	}

	if cfg.Summary.Provider != "mock" {
		t.Errorf("expected default summary provider 'mock', got %s", cfg.Summary.Provider)
	}
	if cfg.Summary.Model != "meta-llama/llama-3.1-8b-instruct" {
		t.Errorf("expected default model, got %s", cfg.Summary.Model)
	}
	if cfg.Summary.Timeout != 30*time.Second {
		t.Errorf("expected default summary timeout 30s, got %v", cfg.Summary.Timeout)
	}

	if cfg.Transfer.BriefingTTL != 30*time.Minute {
		t.Errorf("expected default briefing TTL 30m, got %v", cfg.Transfer.BriefingTTL)
	}
	if cfg.Transfer.SweepInterval != time.Minute {
		t.Errorf("expected default sweep interval 1m, got %v", cfg.Transfer.SweepInterval)
	}

	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicCalls != "warm-transfer.calls" {
		t.Errorf("expected default calls topic, got %s", cfg.Kafka.TopicCalls)
	}
	if cfg.Kafka.TopicTransfers != "warm-transfer.transfers" {
		t.Errorf("expected default transfers topic, got %s", cfg.Kafka.TopicTransfers)
	}

	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsPort != "9090" {
		t.Errorf("expected default metrics port 9090, got %s", cfg.Observability.MetricsPort)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	t.Setenv("LIVEKIT_TOKEN_TTL", "2h")
	t.Setenv("SUMMARY_PROVIDER", "openrouter")
	t.Setenv("TRANSFER_BRIEFING_TTL", "10m")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg := Load()

	if cfg.Service.HTTPPort != "9000" {
		t.Errorf("expected port 9000, got %s", cfg.Service.HTTPPort)
	}
	if cfg.LiveKit.APIKey != "key" || cfg.LiveKit.APISecret != "secret" {
		t.Error("LiveKit credentials not loaded")
	}
	if cfg.LiveKit.TokenTTL != 2*time.Hour {
		t.Errorf("expected token TTL 2h, got %v", cfg.LiveKit.TokenTTL)
	}
	if cfg.Summary.Provider != "openrouter" {
		t.Errorf("expected provider openrouter, got %s", cfg.Summary.Provider)
	}
	if cfg.Transfer.BriefingTTL != 10*time.Minute {
		t.Errorf("expected briefing TTL 10m, got %v", cfg.Transfer.BriefingTTL)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker-1:9092" || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIVEKIT_TOKEN_TTL", "not-a-duration")
	t.Setenv("KAFKA_ENABLED", "not-a-bool")
	t.Setenv("TRANSFER_BRIEFING_TTL", "")

	cfg := Load()

	if cfg.LiveKit.TokenTTL != 24*time.Hour {
		t.Errorf("expected fallback token TTL 24h, got %v", cfg.LiveKit.TokenTTL)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected fallback Kafka disabled")
	}
	if cfg.Transfer.BriefingTTL != 30*time.Minute {
		t.Errorf("expected fallback briefing TTL 30m, got %v", cfg.Transfer.BriefingTTL)
	}
}
