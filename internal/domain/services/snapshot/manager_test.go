package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) ComputeSnapshot(ctx context.Context, basket *entities.Basket) (*entities.PerformanceSnapshot, error) {
	args := m.Called(ctx, basket)
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

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Upsert(ctx context.Context, snap *entities.PerformanceSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockSnapshotRepository) Find(ctx context.Context, basketID uuid.UUID, date time.Time) (*entities.PerformanceSnapshot, error) {
	args := m.Called(ctx, basketID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PerformanceSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) FindLatest(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	args := m.Called(ctx, basketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PerformanceSnapshot), args.Error(1)
}

func snapshotFor(basketID uuid.UUID, date time.Time) *entities.PerformanceSnapshot {
	return &entities.PerformanceSnapshot{
		BasketID:        basketID,
		CalculationDate: date,
		Rolling:         entities.RollingStats{SampleCount: 42},
		ComputedAt:      date,
	}
}

func TestManager_GetOrCompute_OncePerDay(t *testing.T) {
	basketID := uuid.New()
	basket := &entities.Basket{ID: basketID, Name: "b"}
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	snap1 := snapshotFor(basketID, day1)
	snap2 := snapshotFor(basketID, day2)

	now := day1.Add(9 * time.Hour)

	engine := new(MockEngine)
	baskets := new(MockBasketRepository)
	snapshots := new(MockSnapshotRepository)

	baskets.On("GetByID", mock.Anything, basketID).Return(basket, nil)
	baskets.On("UpdateRollingSummary", mock.Anything, basketID, mock.Anything).Return(nil)

	// Day one: miss, compute, then hit the stored row.
	snapshots.On("Find", mock.Anything, basketID, day1).Return(nil, nil).Once()
	engine.On("ComputeSnapshot", mock.Anything, basket).Return(snap1, nil).Once()
	snapshots.On("Upsert", mock.Anything, snap1).Return(nil).Once()
	snapshots.On("Find", mock.Anything, basketID, day1).Return(snap1, nil).Once()

	// Day two: the date key rolls over, forcing one fresh compute.
	snapshots.On("Find", mock.Anything, basketID, day2).Return(nil, nil).Once()
	engine.On("ComputeSnapshot", mock.Anything, basket).Return(snap2, nil).Once()
	snapshots.On("Upsert", mock.Anything, snap2).Return(nil).Once()

	manager := NewManager(engine, baskets, snapshots, nil, zap.NewNop()).
		WithClock(func() time.Time { return now })

	got, err := manager.GetOrCompute(context.Background(), basketID)
	require.NoError(t, err)
	assert.Equal(t, day1, got.CalculationDate)

	got, err = manager.GetOrCompute(context.Background(), basketID)
	require.NoError(t, err)
	assert.Equal(t, day1, got.CalculationDate)
	engine.AssertNumberOfCalls(t, "ComputeSnapshot", 1)

	now = day2.Add(3 * time.Hour)
	got, err = manager.GetOrCompute(context.Background(), basketID)
	require.NoError(t, err)
	assert.Equal(t, day2, got.CalculationDate)
	engine.AssertNumberOfCalls(t, "ComputeSnapshot", 2)

	engine.AssertExpectations(t)
	snapshots.AssertExpectations(t)
}

func TestManager_Recompute_UnknownBasket(t *testing.T) {
	basketID := uuid.New()

	engine := new(MockEngine)
	baskets := new(MockBasketRepository)
	snapshots := new(MockSnapshotRepository)
	baskets.On("GetByID", mock.Anything, basketID).Return(nil, nil)

	manager := NewManager(engine, baskets, snapshots, nil, zap.NewNop())

	_, err := manager.Recompute(context.Background(), basketID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBasketNotFound)
	engine.AssertNotCalled(t, "ComputeSnapshot")
}

func TestManager_Recompute_EngineErrorPropagates(t *testing.T) {
	basketID := uuid.New()
	basket := &entities.Basket{ID: basketID, Name: "b"}

	engine := new(MockEngine)
	baskets := new(MockBasketRepository)
	snapshots := new(MockSnapshotRepository)

	baskets.On("GetByID", mock.Anything, basketID).Return(basket, nil)
	engine.On("ComputeSnapshot", mock.Anything, basket).Return(nil, apperrors.ErrDataUnavailable)

	manager := NewManager(engine, baskets, snapshots, nil, zap.NewNop())

	_, err := manager.Recompute(context.Background(), basketID)
	require.Error(t, err)
	assert.True(t, apperrors.IsDataUnavailable(err))
	snapshots.AssertNotCalled(t, "Upsert")
}

func TestManager_Recompute_SummaryWriteBackFailureIsNotFatal(t *testing.T) {
	basketID := uuid.New()
	basket := &entities.Basket{ID: basketID, Name: "b"}
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snap := snapshotFor(basketID, day1)

	engine := new(MockEngine)
	baskets := new(MockBasketRepository)
	snapshots := new(MockSnapshotRepository)

	baskets.On("GetByID", mock.Anything, basketID).Return(basket, nil)
	engine.On("ComputeSnapshot", mock.Anything, basket).Return(snap, nil)
	snapshots.On("Upsert", mock.Anything, snap).Return(nil)
	baskets.On("UpdateRollingSummary", mock.Anything, basketID, mock.Anything).
		Return(errors.New("write conflict"))

	manager := NewManager(engine, baskets, snapshots, nil, zap.NewNop()).
		WithClock(func() time.Time { return day1 })

	got, err := manager.Recompute(context.Background(), basketID)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestManager_Latest_PrefersStoredSnapshot(t *testing.T) {
	basketID := uuid.New()
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stored := snapshotFor(basketID, day1.AddDate(0, 0, -2))

	engine := new(MockEngine)
	baskets := new(MockBasketRepository)
	snapshots := new(MockSnapshotRepository)
	snapshots.On("FindLatest", mock.Anything, basketID).Return(stored, nil)

	manager := NewManager(engine, baskets, snapshots, nil, zap.NewNop()).
		WithClock(func() time.Time { return day1 })

	got, err := manager.Latest(context.Background(), basketID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	engine.AssertNotCalled(t, "ComputeSnapshot")
}
