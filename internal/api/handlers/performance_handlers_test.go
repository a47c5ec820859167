package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	basketservice "github.com/basketfolio/folio_service/internal/domain/services/basket"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
)

type MockSnapshotReader struct {
	mock.Mock
}

func (m *MockSnapshotReader) Latest(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	args := m.Called(ctx, basketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PerformanceSnapshot), args.Error(1)
}

func (m *MockSnapshotReader) GetOrCompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	args := m.Called(ctx, basketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PerformanceSnapshot), args.Error(1)
}

type MockBasketRepository struct {
	mock.Mock
}

func (m *MockBasketRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Basket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Basket), args.Error(1)
}

func (m *MockBasketRepository) ListActive(ctx context.Context) ([]*entities.Basket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Basket), args.Error(1)
}

func (m *MockBasketRepository) Create(ctx context.Context, basket *entities.Basket) error {
	args := m.Called(ctx, basket)
	return args.Error(0)
}

func (m *MockBasketRepository) UpdateRollingSummary(ctx context.Context, id uuid.UUID, summary *entities.RollingStats) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

func performGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetPerformance(t *testing.T) {
	gin.SetMode(gin.TestMode)

	basketID := uuid.New()
	cagr := 11.2
	snap := &entities.PerformanceSnapshot{
		BasketID:        basketID,
		CalculationDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Basket:          entities.BasketMetrics{CAGR3Y: &cagr},
		Rolling:         entities.RollingStats{SampleCount: 10},
	}

	reader := new(MockSnapshotReader)
	reader.On("Latest", mock.Anything, basketID).Return(snap, nil)

	h := NewPerformanceHandler(reader, nil, zap.NewNop())
	router := gin.New()
	router.GET("/baskets/:id/performance", h.GetPerformance)

	w := performGet(router, "/baskets/"+basketID.String()+"/performance")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	var metrics map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body["basket_metrics"], &metrics))
	assert.JSONEq(t, "11.2", string(metrics["cagr_3y"]))
	// Undefined metrics serialize as null, never as zero.
	assert.JSONEq(t, "null", string(metrics["cagr_5y"]))
	assert.JSONEq(t, "null", string(metrics["sip_xirr"]))
}

func TestGetPerformance_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewPerformanceHandler(new(MockSnapshotReader), nil, zap.NewNop())
	router := gin.New()
	router.GET("/baskets/:id/performance", h.GetPerformance)

	w := performGet(router, "/baskets/not-a-uuid/performance")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestGetPerformance_BasketNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	basketID := uuid.New()
	reader := new(MockSnapshotReader)
	reader.On("Latest", mock.Anything, basketID).
		Return(nil, apperrors.ErrBasketNotFound.WithDetail("basket_id", basketID.String()))

	h := NewPerformanceHandler(reader, nil, zap.NewNop())
	router := gin.New()
	router.GET("/baskets/:id/performance", h.GetPerformance)

	w := performGet(router, "/baskets/"+basketID.String()+"/performance")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "BASKET_NOT_FOUND")
}

func rollingSummaryRouter(repo *MockBasketRepository) *gin.Engine {
	svc := basketservice.NewService(repo, zap.NewNop())
	h := NewPerformanceHandler(new(MockSnapshotReader), svc, zap.NewNop())
	router := gin.New()
	router.GET("/baskets/:id/rolling", h.GetRollingSummary)
	return router
}

func TestGetRollingSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)

	basketID := uuid.New()
	basket := &entities.Basket{
		ID:   basketID,
		Name: "b",
		LatestRollingSummary: &entities.RollingStats{
			Mean:        10.5,
			SampleCount: 120,
		},
	}

	repo := new(MockBasketRepository)
	repo.On("GetByID", mock.Anything, basketID).Return(basket, nil)

	w := performGet(rollingSummaryRouter(repo), "/baskets/"+basketID.String()+"/rolling")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "10.5")
}

func TestGetRollingSummary_NotComputedYet(t *testing.T) {
	gin.SetMode(gin.TestMode)

	basketID := uuid.New()
	repo := new(MockBasketRepository)
	repo.On("GetByID", mock.Anything, basketID).
		Return(&entities.Basket{ID: basketID, Name: "b"}, nil)

	w := performGet(rollingSummaryRouter(repo), "/baskets/"+basketID.String()+"/rolling")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SNAPSHOT_NOT_COMPUTED")
}

func TestGetRollingSummary_InsufficientCoverage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	basketID := uuid.New()
	basket := &entities.Basket{
		ID:                   basketID,
		Name:                 "b",
		LatestRollingSummary: &entities.RollingStats{Insufficient: true},
	}

	repo := new(MockBasketRepository)
	repo.On("GetByID", mock.Anything, basketID).Return(basket, nil)

	w := performGet(rollingSummaryRouter(repo), "/baskets/"+basketID.String()+"/rolling")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_WINDOW_COVERAGE")
}

func TestRespondError_PlainErrorFallsBackToInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("sql: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	// The raw cause never leaks into the response body.
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestGetPerformance_DataUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	basketID := uuid.New()
	reader := new(MockSnapshotReader)
	reader.On("Latest", mock.Anything, basketID).
		Return(nil, apperrors.ErrDataUnavailable)

	h := NewPerformanceHandler(reader, nil, zap.NewNop())
	router := gin.New()
	router.GET("/baskets/:id/performance", h.GetPerformance)

	w := performGet(router, "/baskets/"+basketID.String()+"/performance")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "DATA_UNAVAILABLE")
}
