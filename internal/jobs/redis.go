package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "job:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore connects to Redis and keeps each job for ttl after its last
// write.
func NewRedisStore(addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl, now: time.Now}, nil
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }

func (s *RedisStore) Create(ctx context.Context, job Job) (Job, error) {
	now := s.now().UTC()
	job.ID = uuid.New()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	if err := s.put(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

func (s *RedisStore) Complete(ctx context.Context, result Job) error {
	if result.ID == uuid.Nil {
		return errors.New("job id required")
	}
	job, err := s.Get(ctx, result.ID)
	if err != nil {
		return err
	}
	job.Status = StatusDone
	job.Error = ""
	job.Values = result.Values
	job.Model = result.Model
	job.Vector = result.Vector
	if job.Kind == KindSample && job.Values == nil {
		job.Values = []any{}
	}
	job.UpdatedAt = s.now().UTC()
	return s.put(ctx, job)
}

func (s *RedisStore) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	job.Status = StatusFailed
	if cause != nil {
		job.Error = cause.Error()
	}
	job.UpdatedAt = s.now().UTC()
	return s.put(ctx, job)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) put(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(job.ID), data, s.ttl).Err()
}
