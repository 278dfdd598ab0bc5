package api

import (
	"context"
	"net/http"

	"github.com/foodplanner/backend/internal/tasks"
	"github.com/foodplanner/backend/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TaskQueue is the background task queue handlers hand work to
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
	Status(ctx context.Context, id string) (*tasks.Status, error)
}

// enqueue queues a task and writes the trigger response with the given status.
func enqueue(c *gin.Context, q TaskQueue, logger *zap.Logger, code int, taskType string, payload any, state, message string) {
	id, err := q.Enqueue(c.Request.Context(), taskType, payload)
	if err != nil {
		logger.Error("failed to queue task", zap.String("type", taskType), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue task"})
		return
	}
	logger.Info("task queued", zap.String("type", taskType), zap.String("task_id", id))
	c.JSON(code, types.TaskResponse{TaskID: id, Status: state, Message: message})
}
