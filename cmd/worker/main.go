package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"colprobe/internal/app"
	"colprobe/internal/httputil"
	"colprobe/internal/jobs"
	"colprobe/internal/queue"
	"colprobe/internal/sampler"
)

type sampleTaskPayload struct {
	JobID  uuid.UUID `json:"job_id"`
	Table  string    `json:"table"`
	Column string    `json:"column"`
}

type embedTaskPayload struct {
	JobID uuid.UUID `json:"job_id"`
	Text  string    `json:"text"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, os.Stdout, app.WithDB|app.WithEmbedder|app.WithQueue|app.WithJobs)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("worker starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeSample, func(ctx context.Context, task queue.Task) error {
			var payload sampleTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleSample(ctx, deps, payload)
		})
	})

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeEmbed, func(ctx context.Context, task queue.Task) error {
			var payload embedTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleEmbed(ctx, deps, payload)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps, "worker")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("worker stopped", "err", err)
	}
}

// handleSample samples the requested column and records the outcome on the
// job. Sampling errors end the job as failed; only job store errors are
// returned, so the queue redelivers the task.
func handleSample(ctx context.Context, deps app.Deps, payload sampleTaskPayload) error {
	if payload.JobID == uuid.Nil {
		return fmt.Errorf("sample task without job id")
	}
	log := deps.Log.With("job_id", payload.JobID, "table", payload.Table, "column", payload.Column)

	values, err := sampler.Sample(ctx, deps.DB, payload.Table, payload.Column)
	if err != nil {
		log.Warn("sample failed", "err", err)
		return deps.Jobs.Fail(ctx, payload.JobID, err)
	}
	log.Info("column sampled", "count", len(values))
	return deps.Jobs.Complete(ctx, jobs.Job{
		ID:     payload.JobID,
		Kind:   jobs.KindSample,
		Table:  payload.Table,
		Column: payload.Column,
		Values: values,
	})
}

// handleEmbed mirrors handleSample for embedding tasks.
func handleEmbed(ctx context.Context, deps app.Deps, payload embedTaskPayload) error {
	if payload.JobID == uuid.Nil {
		return fmt.Errorf("embed task without job id")
	}
	log := deps.Log.With("job_id", payload.JobID)

	vec, err := deps.Embedder.Embed(ctx, payload.Text)
	if err != nil {
		log.Warn("embedding failed", "err", err)
		return deps.Jobs.Fail(ctx, payload.JobID, err)
	}
	log.Info("text embedded", "dimensions", len(vec))
	return deps.Jobs.Complete(ctx, jobs.Job{
		ID:     payload.JobID,
		Kind:   jobs.KindEmbed,
		Model:  deps.Embedder.Model(),
		Vector: vec,
	})
}
