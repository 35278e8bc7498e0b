// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	SessionLimits SessionLimitsConfig
	Kafka         KafkaConfig
	Lexicon       LexiconConfig
	Feedback      FeedbackConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener addresses and the service identity.
type ServiceConfig struct {
	Principal   string
	GRPCPort    string
	HTTPPort    string
	MetricsAddr string
}

// STTConfig selects and configures the recognizer.
type STTConfig struct {
	Provider       string // mock, google
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// SessionLimitsConfig bounds a single practice session. Zero disables a limit.
// Retention is how long a stopped session stays queryable.
type SessionLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxEvents     int
	Retention     time.Duration
}

// KafkaConfig configures the feedback and summary publisher.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicFeedback string
	TopicSummary  string
	Principal     string
}

// LexiconConfig points at the filler-word YAML file.
type LexiconConfig struct {
	Path  string
	Watch bool
}

// FeedbackConfig tunes feedback classification.
type FeedbackConfig struct {
	SPMAverage       float64
	SustainThreshold int
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. Unparseable values
// fall back to their defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-coach")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "ko-KR"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
		},
		SessionLimits: SessionLimitsConfig{
			MaxAudioBytes: envOrDefaultInt64("SESSION_MAX_AUDIO_BYTES", 50*1024*1024),
			MaxDuration:   envOrDefaultDuration("SESSION_MAX_DURATION", 30*time.Minute),
			MaxEvents:     envOrDefaultInt("SESSION_MAX_EVENTS", 20000),
			Retention:     envOrDefaultDuration("SESSION_RETENTION", 15*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicFeedback: envOrDefault("KAFKA_TOPIC_FEEDBACK", "practice.feedback.live"),
			TopicSummary:  envOrDefault("KAFKA_TOPIC_SUMMARY", "practice.session.summary"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Lexicon: LexiconConfig{
			Path:  envOrDefault("LEXICON_PATH", ""),
			Watch: envOrDefaultBool("LEXICON_WATCH", true),
		},
		Feedback: FeedbackConfig{
			SPMAverage:       envOrDefaultFloat("FEEDBACK_SPM_AVERAGE", 300),
			SustainThreshold: envOrDefaultInt("FEEDBACK_SUSTAIN_THRESHOLD", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
