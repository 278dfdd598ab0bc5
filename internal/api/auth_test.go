package api_test

import (
	"net/http"
	"testing"

	"github.com/foodplanner/backend/internal/api"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/testhelpers"
	"github.com/foodplanner/backend/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestAuthHandler(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	r, v1 := newTestEngine()
	api.NewAuthHandler(service.NewAuthService(db, testSecret), nil).RegisterRoutes(v1)

	creds := types.RegisterRequest{Email: "cook@example.com", Password: "password123"}

	w := doRequest(t, r, http.MethodPost, "/api/v1/auth/register", creds, "")
	assert.Equal(t, http.StatusCreated, w.Code)
	registered := decode[types.AuthResponse](t, w)
	assert.NotEmpty(t, registered.Token)

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/register", creds, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/register",
		types.RegisterRequest{Email: "not-an-email", Password: "password123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/login",
		types.LoginRequest{Email: creds.Email, Password: creds.Password}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, registered.UserID, decode[types.AuthResponse](t, w).UserID)

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/login",
		types.LoginRequest{Email: creds.Email, Password: "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
