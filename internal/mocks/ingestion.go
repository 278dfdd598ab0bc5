package mocks

import (
	"context"

	"github.com/foodplanner/backend/internal/ingest"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/scrapers"
	"github.com/stretchr/testify/mock"
)

// MockIngestionService is a mock implementation of the ingestion queries
type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Health(ctx context.Context) *ingest.Health {
	return m.Called(ctx).Get(0).(*ingest.Health)
}

func (m *MockIngestionService) Stats(ctx context.Context) (*ingest.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Stats), args.Error(1)
}

func (m *MockIngestionService) ListRuns(ctx context.Context, page, pageSize int, status string) (*ingest.RunPage, error) {
	args := m.Called(ctx, page, pageSize, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.RunPage), args.Error(1)
}

func (m *MockIngestionService) GetRun(ctx context.Context, id uint) (*models.IngestionRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestionRun), args.Error(1)
}

func (m *MockIngestionService) GetRunByTask(ctx context.Context, taskID string) (*models.IngestionRun, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestionRun), args.Error(1)
}

// MockCatalogueScraper is a mock implementation of a scrapeable store
type MockCatalogueScraper struct {
	mock.Mock
}

func (m *MockCatalogueScraper) Categories() []scrapers.Category {
	return m.Called().Get(0).([]scrapers.Category)
}

func (m *MockCatalogueScraper) HealthCheck(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}
