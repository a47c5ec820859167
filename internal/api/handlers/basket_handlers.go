package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	basketservice "github.com/basketfolio/folio_service/internal/domain/services/basket"
)

// BasketHandler serves basket configuration endpoints.
type BasketHandler struct {
	baskets *basketservice.Service
	logger  *zap.Logger
}

// NewBasketHandler creates a basket handler.
func NewBasketHandler(baskets *basketservice.Service, logger *zap.Logger) *BasketHandler {
	return &BasketHandler{baskets: baskets, logger: logger}
}

// CreateBasket validates and stores a new basket configuration. Weights
// must sum to 100 (±0.01) or the request is rejected.
func (h *BasketHandler) CreateBasket(c *gin.Context) {
	var req basketservice.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	basket, err := h.baskets.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, basket)
}

// GetBasket returns one basket's configuration.
func (h *BasketHandler) GetBasket(c *gin.Context) {
	id, ok := basketIDParam(c)
	if !ok {
		return
	}

	basket, err := h.baskets.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, basket)
}

// ListBaskets returns all active baskets.
func (h *BasketHandler) ListBaskets(c *gin.Context) {
	baskets, err := h.baskets.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list baskets", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"baskets": baskets})
}
