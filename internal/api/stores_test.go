package api_test

import (
	"net/http"
	"testing"

	"github.com/foodplanner/backend/internal/api"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStores(t *testing.T) (*gin.Engine, string, string) {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	testhelpers.CreateStore(t, db, "rema1000-main", "REMA 1000", "rema1000")
	testhelpers.CreateStore(t, db, "netto-1", "Netto", "netto")

	auth, authSvc := authMiddleware(db)
	r, v1 := newTestEngine()
	api.NewStoreHandler(service.NewStoreService(db, nil), nil).RegisterRoutes(v1, auth)

	userID, token := registerUser(t, authSvc, "cook@example.com")
	return r, userID, token
}

func TestDiscoverAndGetStore(t *testing.T) {
	r, _, _ := setupStores(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/stores/discover?brand=netto", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Stores []struct {
			ID string `json:"id"`
		} `json:"stores"`
		Total int `json:"total"`
	}](t, w)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "netto-1", body.Stores[0].ID)

	w = doRequest(t, r, http.MethodGet, "/api/v1/stores/discover?limit=500", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/stores/rema1000-main", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/stores/lidl-1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStorePreferencesRoutes(t *testing.T) {
	r, userID, token := setupStores(t)
	base := "/api/v1/stores/users/" + userID + "/preferences"

	w := doRequest(t, r, http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, r, http.MethodPost, base, types.StorePreferenceRequest{StoreID: "netto-1", Priority: 10}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Netto", decode[types.StorePreferenceResponse](t, w).StoreName)

	w = doRequest(t, r, http.MethodPost, base, types.StorePreferenceRequest{StoreID: "netto-1"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, r, http.MethodPost, base, types.StorePreferenceRequest{StoreID: "lidl-1"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodPatch, base+"/netto-1?priority=80", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 80, decode[types.StorePreferenceResponse](t, w).Priority)

	w = doRequest(t, r, http.MethodPatch, base+"/netto-1?priority=101", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(t, r, http.MethodPatch, base+"/netto-1", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, base, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)

	w = doRequest(t, r, http.MethodDelete, base+"/netto-1", nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(t, r, http.MethodDelete, base+"/netto-1", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStorePreferencesForbidsOtherUsers(t *testing.T) {
	r, _, token := setupStores(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/stores/users/"+uuid.NewString()+"/preferences", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/stores/users/not-a-uuid/preferences", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
