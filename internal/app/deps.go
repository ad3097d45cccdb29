package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"colprobe/internal/config"
	"colprobe/internal/database"
	"colprobe/internal/embeddings"
	"colprobe/internal/jobs"
	"colprobe/internal/logger"
	"colprobe/internal/queue"
)

// Component selects which dependencies Build constructs.
type Component uint8

const (
	WithDB Component = 1 << iota
	WithEmbedder
	WithQueue
	WithJobs
)

// Deps bundles common runtime dependencies for the binaries. Fields for
// components that were not requested stay nil.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	DB       *sql.DB
	Embedder embeddings.Embedder
	Queue    queue.Queue
	Jobs     jobs.Store

	closers []func() error
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return config.Load(), nil
}

// Build loads configuration and constructs the requested components. Logs go
// to logOut.
func Build(ctx context.Context, logOut io.Writer, want Component) (Deps, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Deps{}, err
	}
	return BuildWithConfig(ctx, cfg, logOut, want)
}

// BuildWithConfig is Build for an already loaded configuration.
func BuildWithConfig(ctx context.Context, cfg config.Config, logOut io.Writer, want Component) (Deps, error) {
	deps := Deps{
		Config: cfg,
		Log:    logger.NewWithWriter(logOut, cfg.LogLevel),
	}

	if want&WithDB != 0 {
		db, err := database.Open(ctx, cfg.DBDriver, cfg.DBURL)
		if err != nil {
			return Deps{}, fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.Log.Info("connected to database", "driver", cfg.DBDriver)
		deps.DB = db
		deps.closers = append(deps.closers, db.Close)
	}
	if want&WithEmbedder != 0 {
		embedder, err := NewEmbedder(cfg, deps.Log)
		if err != nil {
			deps.Close()
			return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		deps.Embedder = embedder
	}
	if want&WithQueue != 0 {
		q, closeQueue, err := buildQueue(cfg, deps.Log)
		if err != nil {
			deps.Close()
			return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
		}
		deps.Queue = q
		deps.closers = append(deps.closers, closeQueue)
	}
	if want&WithJobs != 0 {
		st, err := buildJobStore(cfg, deps.Log)
		if err != nil {
			deps.Close()
			return Deps{}, fmt.Errorf("failed to initialize job store: %w", err)
		}
		deps.Jobs = st
		deps.closers = append(deps.closers, st.Close)
	}
	return deps, nil
}

// Close releases every component Build opened, in reverse order.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		embedder, err := embeddings.NewOpenAIEmbedder(embeddings.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
			Timeout: time.Duration(cfg.EmbeddingTimeout) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI-compatible embedder", "model", cfg.EmbeddingModel, "base_url", cfg.EmbeddingBaseURL)
		return embedder, nil
	case "hash":
		log.Warn("using offline hash embedder; vectors carry no semantics")
		return embeddings.NewHashEmbedder(embeddings.HashDimension), nil
	default:
		return nil, fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid options: openai, hash)", cfg.EmbeddingProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, func() error, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nc.Drain, nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

func buildJobStore(cfg config.Config, log *slog.Logger) (jobs.Store, error) {
	switch cfg.JobStoreProvider {
	case "redis":
		st, err := jobs.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.JobTTL)*time.Second)
		if err != nil {
			return nil, err
		}
		log.Info("using Redis job store", "addr", cfg.RedisAddr)
		return st, nil
	default:
		return nil, fmt.Errorf("invalid JOB_STORE_PROVIDER: %s (valid option: redis)", cfg.JobStoreProvider)
	}
}
