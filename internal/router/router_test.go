package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/mocks"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) HealthCheck(context.Context) error { return p.err }

func newRouter(t *testing.T, db pinger, origins []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := testhelpers.SetupSQLite(t)
	repo := catalog.NewRepository(gdb, nil)
	return SetupRouter(Deps{
		Auth:           service.NewAuthService(gdb, "secret"),
		Stores:         service.NewStoreService(gdb, nil),
		MealPlans:      service.NewMealPlanService(gdb, nil, repo, nil),
		Ingestion:      new(mocks.MockIngestionService),
		Catalog:        repo,
		Queue:          new(mocks.MockTaskQueue),
		ScrapeTracker:  new(mocks.MockScrapeTracker),
		Scraper:        new(mocks.MockCatalogueScraper),
		DB:             db,
		AllowedOrigins: origins,
	})
}

func TestHealthEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, pinger{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	newRouter(t, pinger{err: errors.New("connection refused")}, nil).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestMetricsRecordRoutes(t *testing.T) {
	r := newRouter(t, pinger{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `foodplanner_http_request_duration_seconds`)
	assert.Contains(t, w.Body.String(), `route="/api/v1/categories"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newRouter(t, pinger{}, nil)
	for _, path := range []string{"/api/v1/meal-plans", "/api/v1/stores/users/00000000-0000-0000-0000-000000000000/preferences"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t, pinger{}, []string{"https://planner.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recipes", nil)
	req.Header.Set("Origin", "https://planner.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://planner.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
