package mocks

import (
	"context"

	"github.com/foodplanner/backend/internal/tasks"
	"github.com/stretchr/testify/mock"
)

// MockTaskQueue is a mock implementation of the task queue
type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	args := m.Called(ctx, taskType, payload)
	return args.String(0), args.Error(1)
}

func (m *MockTaskQueue) Status(ctx context.Context, id string) (*tasks.Status, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tasks.Status), args.Error(1)
}

// MockScrapeTracker is a mock implementation of the full-scrape tracker
type MockScrapeTracker struct {
	mock.Mock
}

func (m *MockScrapeTracker) Active(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockScrapeTracker) Progress(ctx context.Context, taskID string) (*tasks.ScrapeProgress, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tasks.ScrapeProgress), args.Error(1)
}

func (m *MockScrapeTracker) Cancel(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}
