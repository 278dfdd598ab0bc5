package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/foodplanner/backend/internal/api"
	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/matching"
	"github.com/foodplanner/backend/internal/mocks"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingMatcher struct {
	ingredient    string
	topK          int
	minConfidence float64
}

func (m *recordingMatcher) Match(_ context.Context, ingredient string, topK int, minConfidence float64) ([]matching.Match, error) {
	m.ingredient, m.topK, m.minConfidence = ingredient, topK, minConfidence
	return []matching.Match{{IngredientName: ingredient, ProductID: "p1", ConfidenceScore: 0.9, MatchType: "exact"}}, nil
}

func setupRecipes(t *testing.T) (*gin.Engine, *recordingMatcher, *mocks.MockTaskQueue) {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	testhelpers.CreateStore(t, db, "s1", "REMA 1000", "rema1000")
	testhelpers.CreateProduct(t, db, "beef", "s1", "Oksekød", 50, testhelpers.Ptr(35.0))
	testhelpers.CreateProduct(t, db, "carrot", "s1", "Gulerødder", 10, nil)
	testhelpers.CreateRecipe(t, db, "stew", "Beef Stew", "Beef", [2]string{"Beef", "500g"}, [2]string{"Carrot", "2"})
	testhelpers.CreateRecipe(t, db, "pie", "Apple Pie", "Dessert", [2]string{"Apple", "4"})
	testhelpers.CreateMatch(t, db, "beef", "beef", 0.9)
	testhelpers.CreateMatch(t, db, "carrot", "carrot", 0.7)

	matcher := &recordingMatcher{}
	queue := new(mocks.MockTaskQueue)
	r, v1 := newTestEngine()
	api.NewRecipeHandler(catalog.NewRepository(db, nil), matcher, queue, nil).RegisterRoutes(v1, nil)
	return r, matcher, queue
}

func TestRecipeRoutes(t *testing.T) {
	r, _, _ := setupRecipes(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/recipes?category=Beef", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	}](t, w)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 20, list.Limit)

	w = doRequest(t, r, http.MethodGet, "/api/v1/recipes?limit=101", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/recipes/by-discounts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)

	w = doRequest(t, r, http.MethodGet, "/api/v1/recipes/stew", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, r, http.MethodGet, "/api/v1/recipes/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/recipes/stew/cost", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[catalog.CostEstimate](t, w).Items, 2)

	w = doRequest(t, r, http.MethodDelete, "/api/v1/recipes/pie", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(t, r, http.MethodDelete, "/api/v1/recipes/pie", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngredientRoutes(t *testing.T) {
	r, matcher, _ := setupRecipes(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/ingredients", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingredients/unmatched", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Apple"}, decode[struct {
		Ingredients []string `json:"ingredients"`
	}](t, w).Ingredients)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingredients/unmatched?limit=501", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/ingredients/Beef/products", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	products := decode[struct {
		Name     string                 `json:"name"`
		Products []catalog.ProductMatch `json:"products"`
	}](t, w)
	assert.Equal(t, "Beef", products.Name)
	require.Len(t, products.Products, 1)
	assert.Equal(t, "beef", products.Products[0].ProductID)

	// unknown ingredients answer with an empty list
	w = doRequest(t, r, http.MethodGet, "/api/v1/ingredients/tofu/products", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"products":[]`)

	w = doRequest(t, r, http.MethodPost, "/api/v1/ingredients/match",
		types.MatchIngredientRequest{IngredientName: "hakket oksekød"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hakket oksekød", matcher.ingredient)
	assert.Equal(t, 5, matcher.topK)
	assert.Equal(t, 0.5, matcher.minConfidence)

	w = doRequest(t, r, http.MethodPost, "/api/v1/ingredients/match",
		types.MatchIngredientRequest{IngredientName: "mælk", TopK: 2, MinConfidence: testhelpers.Ptr(0.8)}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, matcher.topK)
	assert.Equal(t, 0.8, matcher.minConfidence)

	w = doRequest(t, r, http.MethodPost, "/api/v1/ingredients/match", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogueListings(t *testing.T) {
	r, _, _ := setupRecipes(t)

	for _, path := range []string{"/api/v1/categories", "/api/v1/areas", "/api/v1/graph/stats"} {
		w := doRequest(t, r, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestGraphTaskTriggers(t *testing.T) {
	r, _, queue := setupRecipes(t)
	queue.On("Enqueue", mock.Anything, tasks.TypeMealDBImport, nil).Return("t-import", nil)
	queue.On("Enqueue", mock.Anything, tasks.TypeProductSync, nil).Return("t-sync", nil)
	queue.On("Enqueue", mock.Anything, tasks.TypeFullRefresh, nil).Return("t-refresh", nil)
	queue.On("Enqueue", mock.Anything, tasks.TypeComputeMatches,
		tasks.MatchPayload{MinConfidence: tasks.DefaultMatchConfidence, TopK: tasks.DefaultMatchTopK}).Return("t-match", nil).Once()
	queue.On("Enqueue", mock.Anything, tasks.TypeComputeMatches,
		tasks.MatchPayload{MinConfidence: 0.8, TopK: 5}).Return("t-match-2", nil).Once()

	tests := []struct {
		path   string
		taskID string
	}{
		{"/api/v1/graph/ingest/mealdb", "t-import"},
		{"/api/v1/graph/sync/products", "t-sync"},
		{"/api/v1/graph/refresh", "t-refresh"},
		{"/api/v1/graph/compute-matches", "t-match"},
		{"/api/v1/graph/compute-matches?min_confidence=0.8&top_k=5", "t-match-2"},
	}
	for _, tt := range tests {
		w := doRequest(t, r, http.MethodPost, tt.path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, tt.path)
		resp := decode[types.TaskResponse](t, w)
		assert.Equal(t, tt.taskID, resp.TaskID)
		assert.Equal(t, "started", resp.Status)
	}

	w := doRequest(t, r, http.MethodPost, "/api/v1/graph/compute-matches?top_k=11", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	queue.AssertExpectations(t)
}
