package api_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/foodplanner/backend/internal/api"
	"github.com/foodplanner/backend/internal/ingest"
	"github.com/foodplanner/backend/internal/mocks"
	"github.com/foodplanner/backend/internal/models"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupIngestion(t *testing.T) (*gin.Engine, *mocks.MockIngestionService, *mocks.MockTaskQueue) {
	t.Helper()
	svc := new(mocks.MockIngestionService)
	queue := new(mocks.MockTaskQueue)
	r, v1 := newTestEngine()
	api.NewIngestionHandler(svc, queue, nil).RegisterRoutes(v1, nil)
	return r, svc, queue
}

func TestTriggerIngestion(t *testing.T) {
	r, _, queue := setupIngestion(t)
	queue.On("Enqueue", mock.Anything, tasks.TypeDailyIngestion, ingest.Options{
		StoreIDs:    []string{"rema1000-main"},
		Force:       true,
		TriggerType: ingest.TriggerManual,
	}).Return("task-1", nil).Once()
	queue.On("Enqueue", mock.Anything, tasks.TypeDailyIngestion, ingest.Options{
		TriggerType: ingest.TriggerManual,
	}).Return("task-2", nil).Once()

	w := doRequest(t, r, http.MethodPost, "/api/v1/ingestion/trigger",
		types.TriggerIngestionRequest{StoreIDs: []string{"rema1000-main"}, Force: true}, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.TaskResponse](t, w)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, tasks.StateQueued, resp.Status)

	// no body means every selected store
	w = doRequest(t, r, http.MethodPost, "/api/v1/ingestion/trigger", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "task-2", decode[types.TaskResponse](t, w).TaskID)

	queue.AssertExpectations(t)
}

func TestTriggerIngestionQueueDown(t *testing.T) {
	r, _, queue := setupIngestion(t)
	queue.On("Enqueue", mock.Anything, tasks.TypeDailyIngestion, mock.Anything).
		Return("", errors.New("redis: connection refused"))

	w := doRequest(t, r, http.MethodPost, "/api/v1/ingestion/trigger", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCleanupTrigger(t *testing.T) {
	r, _, queue := setupIngestion(t)
	queue.On("Enqueue", mock.Anything, tasks.TypeCleanup, tasks.CleanupPayload{DaysToKeep: 30}).Return("c-1", nil).Once()
	queue.On("Enqueue", mock.Anything, tasks.TypeCleanup, tasks.CleanupPayload{DaysToKeep: 90}).Return("c-2", nil).Once()

	w := doRequest(t, r, http.MethodPost, "/api/v1/ingestion/cleanup", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = doRequest(t, r, http.MethodPost, "/api/v1/ingestion/cleanup?days_to_keep=90", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	for _, days := range []string{"6", "366", "soon"} {
		w = doRequest(t, r, http.MethodPost, "/api/v1/ingestion/cleanup?days_to_keep="+days, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, days)
	}
	queue.AssertExpectations(t)
}

func TestIngestionRuns(t *testing.T) {
	r, svc, _ := setupIngestion(t)
	started := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	done := started.Add(90 * time.Second)
	run := &models.IngestionRun{ID: 7, Status: "completed", TaskID: "task-7", StartedAt: started, CompletedAt: &done}

	svc.On("ListRuns", mock.Anything, 2, 10, "failed").
		Return(&ingest.RunPage{Runs: []models.IngestionRun{}, Total: 11, Page: 2, PageSize: 10}, nil)
	svc.On("GetRun", mock.Anything, uint(7)).Return(run, nil)
	svc.On("GetRun", mock.Anything, uint(8)).Return(nil, ingest.ErrRunNotFound)
	svc.On("GetRunByTask", mock.Anything, "task-7").Return(run, nil)

	w := doRequest(t, r, http.MethodGet, "/api/v1/ingestion/runs?page=2&page_size=10&status=failed", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(11), decode[ingest.RunPage](t, w).Total)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/runs?page_size=500", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/runs/7", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[struct {
		Run             models.IngestionRun `json:"run"`
		DurationSeconds *float64            `json:"duration_seconds"`
	}](t, w)
	assert.Equal(t, uint(7), detail.Run.ID)
	require.NotNil(t, detail.DurationSeconds)
	assert.Equal(t, 90.0, *detail.DurationSeconds)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/runs/8", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/runs/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/runs/by-task/task-7", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestionHealth(t *testing.T) {
	r, svc, _ := setupIngestion(t)
	svc.On("Health", mock.Anything).Return(&ingest.Health{Healthy: false, Database: true, RedisError: "down"}).Once()
	svc.On("Health", mock.Anything).Return(&ingest.Health{Healthy: true, Database: true, Redis: true}).Once()
	svc.On("Stats", mock.Anything).Return(&ingest.Stats{TotalStores: 3}, nil)

	w := doRequest(t, r, http.MethodGet, "/api/v1/ingestion/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingestion/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[ingest.Stats](t, w).TotalStores)
}
