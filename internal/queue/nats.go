package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"colprobe/internal/retry"
)

// NewNATS constructs a thin NATS-based queue.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc, publish: nc.Publish, now: time.Now}
}

type natsQueue struct {
	log     *slog.Logger
	nc      *nats.Conn
	publish func(subject string, data []byte) error
	now     func() time.Time
}

func subject(t TaskType) string { return "tasks." + string(t) }

func (q *natsQueue) Enqueue(_ context.Context, task Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return errors.New("task type required")
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.publish(subject(task.Type), body)
}

func (q *natsQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	group := "workers-" + string(taskType)
	sub, err := q.nc.QueueSubscribe(subject(taskType), group, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	q.log.Info("consuming tasks", "subject", subject(taskType), "group", group)
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		q.log.Error("failed to decode task", "err", err)
		return
	}

	if !q.waitUntil(ctx, task.NotBefore) {
		return
	}

	if err := handler(ctx, task); err != nil {
		q.redeliver(ctx, task, err)
	}
}

// waitUntil blocks until t or until ctx ends, reporting whether t was reached.
func (q *natsQueue) waitUntil(ctx context.Context, t time.Time) bool {
	wait := t.Sub(q.now())
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (q *natsQueue) redeliver(ctx context.Context, task Task, handlerErr error) {
	task.Attempts++
	if task.MaxAttempts == 0 {
		task.MaxAttempts = defaultMaxAttempts
	}

	if task.Attempts >= task.MaxAttempts {
		q.log.Error("task permanently failed", "id", task.ID, "type", task.Type, "original_err", handlerErr)
		return
	}
	task.NotBefore = q.now().Add(retry.Backoff(task.Attempts, time.Second, maxRedeliveryDelay))
	if err := q.Enqueue(ctx, task); err != nil {
		q.log.Error("failed to re-enqueue task after failure", "id", task.ID, "type", task.Type, "original_err", handlerErr, "enqueue_err", err)
	}
}
