package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"colprobe/internal/embeddings"
)

// Kind names what a job computes.
type Kind string

const (
	KindSample Kind = "sample"
	KindEmbed  Kind = "embed"
)

// Status tracks where a job is in its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned for jobs that never existed or have expired.
var ErrNotFound = errors.New("job not found")

// Job tracks one asynchronous sample or embed request. Values survive a JSON
// round trip, so integers come back as float64 and byte slices as base64.
type Job struct {
	ID        uuid.UUID         `json:"id"`
	Kind      Kind              `json:"kind"`
	Status    Status            `json:"status"`
	Table     string            `json:"table,omitempty"`
	Column    string            `json:"column,omitempty"`
	Values    []any             `json:"values"`
	Model     string            `json:"model,omitempty"`
	Vector    embeddings.Vector `json:"vector,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store persists jobs for a bounded time.
type Store interface {
	// Create assigns an ID, marks the job pending and saves it.
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id uuid.UUID) (Job, error)
	// Complete copies the result fields of job onto the stored job and
	// marks it done. A sample job always keeps a non-nil Values.
	Complete(ctx context.Context, job Job) error
	// Fail records cause on an existing job and marks it failed.
	Fail(ctx context.Context, id uuid.UUID, cause error) error
	Close() error
}
