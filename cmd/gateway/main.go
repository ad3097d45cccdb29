package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"colprobe/internal/app"
	"colprobe/internal/embeddings"
	"colprobe/internal/httputil"
	"colprobe/internal/jobs"
	"colprobe/internal/queue"
	"colprobe/internal/sampler"
)

type sampleRequest struct {
	Table  string `json:"table" validate:"required,max=128,sqlident"`
	Column string `json:"column" validate:"required,max=128,sqlident"`
}

type embedRequest struct {
	Text string `json:"text" validate:"required,max=8192"`
}

type jobRequest struct {
	Kind   jobs.Kind `json:"kind" validate:"required,oneof=sample embed"`
	Table  string    `json:"table" validate:"required_if=Kind sample,omitempty,max=128,sqlident"`
	Column string    `json:"column" validate:"required_if=Kind sample,omitempty,max=128,sqlident"`
	Text   string    `json:"text" validate:"required_if=Kind embed,max=8192"`
}

// sampleTaskPayload and embedTaskPayload are shared with cmd/worker by shape.
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
	deps, err := app.Build(context.Background(), os.Stdout, app.WithDB|app.WithEmbedder|app.WithQueue|app.WithJobs)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	demo, err := newDemoEmbedder(deps)
	if err != nil {
		deps.Log.Error("failed to build demo embedder", "err", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, newRouter(deps, demo)); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

// newDemoEmbedder builds a second embedder pinned to DemoModel against the
// configured endpoint. EMBEDDING_MODEL only applies to /api/embeddings.
func newDemoEmbedder(deps app.Deps) (embeddings.Embedder, error) {
	cfg := deps.Config
	cfg.EmbeddingModel = embeddings.DemoModel
	return app.NewEmbedder(cfg, deps.Log)
}

func newRouter(deps app.Deps, demo embeddings.Embedder) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/samples", sampleHandler(deps))
	r.Post("/api/embeddings", embedHandler(deps))
	r.Get("/api/embeddings/demo", demoHandler(deps, demo))
	r.Post("/api/jobs", createJobHandler(deps))
	r.Get("/api/jobs/{id}", getJobHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps))
	return r
}

// decode reads and validates a JSON body, writing the 400 itself on failure.
func decode(deps app.Deps, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
		return false
	}
	if err := httputil.Validator.Struct(dst); err != nil {
		httputil.ValidationError(deps.Log, w, err)
		return false
	}
	return true
}

func sampleHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sampleRequest
		if !decode(deps, w, r, &req) {
			return
		}
		values, err := sampler.Sample(r.Context(), deps.DB, req.Table, req.Column)
		if err != nil {
			httputil.Fail(deps.Log.With("table", req.Table, "column", req.Column), w, "sample failed", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"table":  req.Table,
			"column": req.Column,
			"count":  len(values),
			"values": values,
		})
	}
}

func embedHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if !decode(deps, w, r, &req) {
			return
		}
		vec, err := deps.Embedder.Embed(r.Context(), req.Text)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to embed text", err, http.StatusInternalServerError)
			return
		}
		writeVector(w, deps.Embedder.Model(), vec)
	}
}

func demoHandler(deps app.Deps, demo embeddings.Embedder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vec, err := embeddings.EncodeDemo(r.Context(), demo)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to embed demo text", err, http.StatusInternalServerError)
			return
		}
		writeVector(w, demo.Model(), vec)
	}
}

func writeVector(w http.ResponseWriter, model string, vec embeddings.Vector) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"model":      model,
		"dimensions": len(vec),
		"vector":     vec,
	})
}

func createJobHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !decode(deps, w, r, &req) {
			return
		}
		ctx := r.Context()

		job, err := deps.Jobs.Create(ctx, jobs.Job{Kind: req.Kind, Table: req.Table, Column: req.Column})
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to create job", err, http.StatusInternalServerError)
			return
		}
		log := deps.Log.With("job_id", job.ID, "kind", job.Kind)

		task, err := taskFor(job, req)
		if err != nil {
			failJob(ctx, deps, log, w, job.ID, "marshal payload failed", err)
			return
		}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			failJob(ctx, deps, log, w, job.ID, "failed to enqueue job; please retry", err)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"job_id": job.ID.String(),
			"status": job.Status,
		})
	}
}

func taskFor(job jobs.Job, req jobRequest) (queue.Task, error) {
	var (
		payload  any
		taskType queue.TaskType
	)
	switch job.Kind {
	case jobs.KindSample:
		payload = sampleTaskPayload{JobID: job.ID, Table: req.Table, Column: req.Column}
		taskType = queue.TaskTypeSample
	case jobs.KindEmbed:
		payload = embedTaskPayload{JobID: job.ID, Text: req.Text}
		taskType = queue.TaskTypeEmbed
	default:
		return queue.Task{}, fmt.Errorf("unknown job kind %q", job.Kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queue.Task{}, err
	}
	return queue.Task{Type: taskType, Payload: body}, nil
}

// failJob marks the job failed before answering with a 500.
func failJob(ctx context.Context, deps app.Deps, log *slog.Logger, w http.ResponseWriter, id uuid.UUID, message string, err error) {
	if upErr := deps.Jobs.Fail(ctx, id, err); upErr != nil {
		log.Error("failed to mark job failed", "err", upErr)
	}
	httputil.Fail(log, w, message, err, http.StatusInternalServerError)
}

func getJobHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid job id", err, http.StatusBadRequest)
			return
		}
		job, err := deps.Jobs.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			httputil.Fail(deps.Log, w, "job not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load job", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, job)
	}
}
