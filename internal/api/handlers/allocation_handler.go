// internal/api/handlers/allocation_handler.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oplift/buyplan/internal/domain"
	"github.com/oplift/buyplan/internal/engine"
	"github.com/oplift/buyplan/internal/service"
	"github.com/oplift/buyplan/pkg/logger"
)

// RequestFiller fills master-data fields (supplier terms, freight tariffs)
// a request left blank. Nil means requests must be self-contained.
type RequestFiller interface {
	FillRequest(ctx context.Context, req *domain.AllocationRequest) error
}

type AllocationHandler struct {
	service *service.AllocationService
	filler  RequestFiller
}

func NewAllocationHandler(svc *service.AllocationService, filler RequestFiller) *AllocationHandler {
	return &AllocationHandler{service: svc, filler: filler}
}

// Allocate runs the full budget allocation for one request.
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req domain.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.fill(c, &req); err != nil {
		return
	}

	result, err := h.service.Allocate(c.Request.Context(), req)
	if err != nil {
		respondAllocationError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type scenariosRequest struct {
	Budgets []float64                `json:"budgets" binding:"required"`
	Request domain.AllocationRequest `json:"request"`
}

// AllocateScenarios runs the same request under several budgets.
func (h *AllocationHandler) AllocateScenarios(c *gin.Context) {
	var req scenariosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.fill(c, &req.Request); err != nil {
		return
	}

	scenarios, err := h.service.AllocateScenarios(c.Request.Context(), req.Request, req.Budgets)
	if err != nil {
		respondAllocationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

// InvalidateCache drops all memoized allocation results.
func (h *AllocationHandler) InvalidateCache(c *gin.Context) {
	if err := h.service.InvalidateCache(c.Request.Context()); err != nil {
		logger.Log.Error().Err(err).Msg("cache invalidation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache invalidation failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AllocationHandler) fill(c *gin.Context, req *domain.AllocationRequest) error {
	if h.filler == nil {
		return nil
	}
	if err := h.filler.FillRequest(c.Request.Context(), req); err != nil {
		logger.Log.Error().Err(err).Msg("failed to load master data for request")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load master data"})
		return err
	}
	return nil
}

func respondAllocationError(c *gin.Context, err error) {
	if engine.IsInputError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Log.Error().Err(err).Msg("allocation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "allocation failed"})
}
