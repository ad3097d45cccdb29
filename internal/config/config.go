package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration shared by the binaries.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DBDriver string `env:"DB_DRIVER" envDefault:"pgx"` // "pgx", "postgres", "sqlite" or "clickhouse"
	DBURL    string `env:"DB_URL"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"`
	QueueURL      string `env:"QUEUE_URL"`

	// Job store
	JobStoreProvider string `env:"JOB_STORE_PROVIDER" envDefault:"redis"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	JobTTL           int    `env:"JOB_TTL_SECONDS" envDefault:"86400"`

	// Embeddings
	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"openai"` // any OpenAI-compatible /embeddings endpoint
	EmbeddingBaseURL  string `env:"EMBEDDING_BASE_URL"`
	OpenAIKey         string `env:"OPENAI_API_KEY"`
	EmbeddingModel    string `env:"EMBEDDING_MODEL" envDefault:"bge-base-zh-v1.5"`
	EmbeddingTimeout  int    `env:"EMBEDDING_TIMEOUT_SECONDS" envDefault:"30"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
