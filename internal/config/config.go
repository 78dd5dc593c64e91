// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the service.
type Config struct {
	Service       ServiceConfig
	LiveKit       LiveKitConfig
	Summary       SummaryConfig
	Transfer      TransferConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds identity and listener settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// LiveKitConfig holds media-platform credential settings.
type LiveKitConfig struct {
	APIKey    string
	APISecret string
	URL       string
	TokenTTL  time.Duration
}

// SummaryConfig holds summarization provider settings.
type SummaryConfig struct {
	Provider string // openrouter, mock
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// TransferConfig holds transfer lifecycle settings.
type TransferConfig struct {
	// BriefingTTL bounds how long a transfer may sit in briefing before the
	// sweep expires it. Zero disables the sweep.
	BriefingTTL   time.Duration
	SweepInterval time.Duration
}

// KafkaConfig holds lifecycle event publishing settings.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicCalls     string
	TopicTransfers string
	Principal      string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-warm-transfer"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8000"),
		},
		LiveKit: LiveKitConfig{
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
			URL:       envOrDefault("LIVEKIT_URL", "ws://localhost:7880"),
			TokenTTL:  envDuration("LIVEKIT_TOKEN_TTL", 24*time.Hour),
		},
		Summary: SummaryConfig{
			Provider: envOrDefault("SUMMARY_PROVIDER", "mock"),
			APIKey:   os.Getenv("OPENROUTER_API_KEY"),
			Model:    envOrDefault("SUMMARY_MODEL", "meta-llama/llama-3.1-8b-instruct"),
			BaseURL:  os.Getenv("SUMMARY_BASE_URL"),
			Timeout:  envDuration("SUMMARY_TIMEOUT", 30*time.Second),
		},
		Transfer: TransferConfig{
			BriefingTTL:   envDuration("TRANSFER_BRIEFING_TTL", 30*time.Minute),
			SweepInterval: envDuration("TRANSFER_SWEEP_INTERVAL", time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:        envBool("KAFKA_ENABLED", false),
			Brokers:        envList("KAFKA_BROKERS"),
			TopicCalls:     envOrDefault("KAFKA_TOPIC_CALLS", "warm-transfer.calls"),
			TopicTransfers: envOrDefault("KAFKA_TOPIC_TRANSFERS", "warm-transfer.transfers"),
			Principal:      envOrDefault("SERVICE_PRINCIPAL", "svc-warm-transfer"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
