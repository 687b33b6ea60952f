// internal/api/handlers/pipeline_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/internal/pipeline"
	"github.com/oplift/buyplan/internal/service"
	"github.com/oplift/buyplan/pkg/logger"
)

type PipelineHandler struct {
	service *service.AllocationService
}

func NewPipelineHandler(svc *service.AllocationService) *PipelineHandler {
	return &PipelineHandler{service: svc}
}

// stageRequest carries the prior state plus the run parameters. State is nil
// on the first call; the load stage creates it.
type stageRequest struct {
	State  *pipeline.State `json:"state"`
	Inputs pipeline.Inputs `json:"inputs"`
	Data   pipeline.Data   `json:"data"`
}

// RunStage executes a single pipeline stage and returns the updated state.
func (h *PipelineHandler) RunStage(c *gin.Context) {
	stage, err := strconv.Atoi(c.Param("stage"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stage must be an integer"})
		return
	}

	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	state, err := h.service.RunStage(c.Request.Context(), req.State, req.Inputs, req.Data, stage)
	if err != nil {
		respondStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func respondStageError(c *gin.Context, err error) {
	if pipeline.IsStageDependencyError(err) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if engine.IsInputError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Log.Error().Err(err).Msg("pipeline stage failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "stage execution failed"})
}
