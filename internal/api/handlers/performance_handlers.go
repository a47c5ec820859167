package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	basketservice "github.com/basketfolio/folio_service/internal/domain/services/basket"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
)

// SnapshotReader is the read-side contract of the snapshot cache manager.
type SnapshotReader interface {
	Latest(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error)
	GetOrCompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error)
}

// PerformanceHandler serves the public read path for computed performance.
type PerformanceHandler struct {
	snapshots SnapshotReader
	baskets   *basketservice.Service
	logger    *zap.Logger
}

// NewPerformanceHandler creates a performance handler.
func NewPerformanceHandler(snapshots SnapshotReader, baskets *basketservice.Service, logger *zap.Logger) *PerformanceHandler {
	return &PerformanceHandler{snapshots: snapshots, baskets: baskets, logger: logger}
}

// GetPerformance returns the basket's latest snapshot, computing it
// synchronously when none exists yet.
func (h *PerformanceHandler) GetPerformance(c *gin.Context) {
	id, ok := basketIDParam(c)
	if !ok {
		return
	}

	snap, err := h.snapshots.Latest(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to serve performance snapshot",
			zap.String("basket_id", id.String()),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}
	if snap == nil {
		respondError(c, apperrors.ErrSnapshotNotFound)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// GetRollingSummary returns the basket's long-lived rolling summary
// metadata from its configuration.
func (h *PerformanceHandler) GetRollingSummary(c *gin.Context) {
	id, ok := basketIDParam(c)
	if !ok {
		return
	}

	basket, err := h.baskets.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if basket.LatestRollingSummary == nil {
		respondError(c, apperrors.ErrSnapshotNotFound)
		return
	}
	if basket.LatestRollingSummary.Insufficient {
		respondError(c, apperrors.ErrInsufficientWindowCoverage.
			WithDetail("basket_id", basket.ID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"basket_id":       basket.ID,
		"basket_name":     basket.Name,
		"rolling_summary": basket.LatestRollingSummary,
	})
}
