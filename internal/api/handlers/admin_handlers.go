package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/workers/recalc_scheduler"
)

// Recomputer is the admin-side contract of the snapshot cache manager.
type Recomputer interface {
	Recompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error)
}

// SchedulerControl exposes the scheduler to the admin endpoints.
type SchedulerControl interface {
	TriggerManualRun() error
	GetStatus() recalc_scheduler.Status
}

// AdminHandler serves manual recompute triggers and scheduler status.
// Authorization of these endpoints is handled upstream.
type AdminHandler struct {
	manager   Recomputer
	scheduler SchedulerControl
	logger    *zap.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(manager Recomputer, scheduler SchedulerControl, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{manager: manager, scheduler: scheduler, logger: logger}
}

// RecomputeBasket forces a fresh computation for one basket.
func (h *AdminHandler) RecomputeBasket(c *gin.Context) {
	id, ok := basketIDParam(c)
	if !ok {
		return
	}

	h.logger.Info("manual recompute requested", zap.String("basket_id", id.String()))

	snap, err := h.manager.Recompute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RecomputeAll kicks off a full scheduler pass in the background.
func (h *AdminHandler) RecomputeAll(c *gin.Context) {
	if err := h.scheduler.TriggerManualRun(); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "SCHEDULER_UNAVAILABLE",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recalculation started"})
}

// SchedulerStatus reports the scheduler state and the last run summary.
func (h *AdminHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.GetStatus())
}
