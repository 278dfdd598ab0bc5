package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck returns the health status of the API. The database is checked
// when db is set.
func HealthCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "healthy", "service": "foodplanner-api", "database": "ok"}
		if db != nil {
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
