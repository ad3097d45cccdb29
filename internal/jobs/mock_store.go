package jobs

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, job Job) (Job, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockStore) Complete(ctx context.Context, job Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockStore) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	args := m.Called(ctx, id, cause)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
