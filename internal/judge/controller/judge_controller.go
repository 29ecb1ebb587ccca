package controller

import (
	"context"
	"net/http"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ResultReader loads result records.
type ResultReader interface {
	Get(ctx context.Context, submissionID string) (model.ResultRecord, error)
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JudgeController handles result and health requests.
type JudgeController struct {
	results ResultReader
	checks  map[string]Pinger
}

// NewJudgeController creates a new controller. checks are probed by Health.
func NewJudgeController(results ResultReader, checks map[string]Pinger) *JudgeController {
	return &JudgeController{results: results, checks: checks}
}

// RegisterRoutes mounts the controller's routes.
func (h *JudgeController) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/api/v1/judge/results/:id", h.GetResult)
}

// GetResult returns the cached result for one submission.
func (h *JudgeController) GetResult(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	rec, err := h.results.Get(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec)
}

// Health reports whether every dependency answers a ping.
func (h *JudgeController) Health(c *gin.Context) {
	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check.Ping(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:    appErr.ServiceUnavailable,
			Message: appErr.ServiceUnavailable.Message(),
			Details: failed,
		})
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}
