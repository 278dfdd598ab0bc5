package api

import (
	"errors"
	"net/http"

	"github.com/foodplanner/backend/internal/catalog"
	"github.com/foodplanner/backend/internal/ingest"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/tasks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

var (
	notFoundErrors = []error{
		service.ErrMealPlanNotFound,
		service.ErrStoreNotFound,
		service.ErrPreferenceNotFound,
		service.ErrRecipeNotInPlan,
		catalog.ErrNotFound,
		ingest.ErrRunNotFound,
		tasks.ErrTaskNotFound,
	}
	badRequestErrors = []error{
		service.ErrMissingPlanDates,
		service.ErrInvalidDateRange,
		service.ErrPlanTooLong,
		service.ErrInvalidPeople,
		service.ErrInvalidMealUpdate,
	}
	conflictErrors = []error{
		service.ErrUserExists,
		service.ErrPreferenceExists,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondError maps domain errors to HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case isAny(err, notFoundErrors):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case isAny(err, badRequestErrors):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case isAny(err, conflictErrors):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
