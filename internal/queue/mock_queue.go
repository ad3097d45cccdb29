package queue

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

var _ Queue = (*MockQueue)(nil)

// MockQueue records enqueued tasks and worker registrations for handler tests.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, task Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	args := m.Called(ctx, taskType, handler)
	return args.Error(0)
}

// MatchTask matches a task of taskType whose JSON payload decodes to want.
func MatchTask[P comparable](taskType TaskType, want P) any {
	return mock.MatchedBy(func(task Task) bool {
		if task.Type != taskType {
			return false
		}
		var got P
		if err := json.Unmarshal(task.Payload, &got); err != nil {
			return false
		}
		return got == want
	})
}
