package recalc_scheduler

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
)

type MockSnapshotManager struct {
	mock.Mock
}

func (m *MockSnapshotManager) Recompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
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

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InterBasketDelay = 0
	cfg.StartupPassEnabled = false
	return cfg
}

func namedBasket(name string) *entities.Basket {
	return &entities.Basket{ID: uuid.New(), Name: name, IsActive: true}
}

func TestScheduler_RunAll_IsolatesBasketFailures(t *testing.T) {
	good1 := namedBasket("growth")
	bad := namedBasket("broken")
	good2 := namedBasket("income")

	baskets := new(MockBasketRepository)
	baskets.On("ListActive", mock.Anything).
		Return([]*entities.Basket{good1, bad, good2}, nil)

	manager := new(MockSnapshotManager)
	manager.On("Recompute", mock.Anything, good1.ID).
		Return(&entities.PerformanceSnapshot{BasketID: good1.ID}, nil)
	manager.On("Recompute", mock.Anything, bad.ID).
		Return(nil, errors.New("no price data for any instrument"))
	manager.On("Recompute", mock.Anything, good2.ID).
		Return(&entities.PerformanceSnapshot{BasketID: good2.ID}, nil)

	s, err := NewScheduler(manager, baskets, testConfig(), zap.NewNop())
	require.NoError(t, err)

	summary := s.RunAll(context.Background())
	require.NotNil(t, summary)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, bad.ID, summary.Errors[0].BasketID)
	assert.Equal(t, "broken", summary.Errors[0].BasketName)
	assert.Contains(t, summary.Errors[0].Reason, "no price data")

	// Every basket after the failed one was still attempted.
	manager.AssertNumberOfCalls(t, "Recompute", 3)
}

func TestScheduler_RunAll_ListFailure(t *testing.T) {
	baskets := new(MockBasketRepository)
	baskets.On("ListActive", mock.Anything).Return(nil, errors.New("db down"))

	manager := new(MockSnapshotManager)

	s, err := NewScheduler(manager, baskets, testConfig(), zap.NewNop())
	require.NoError(t, err)

	summary := s.RunAll(context.Background())
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Total)
	manager.AssertNotCalled(t, "Recompute")
}

func TestScheduler_RunAll_CancelledContextFailsRemaining(t *testing.T) {
	b1 := namedBasket("one")
	b2 := namedBasket("two")

	baskets := new(MockBasketRepository)
	baskets.On("ListActive", mock.Anything).
		Return([]*entities.Basket{b1, b2}, nil)

	manager := new(MockSnapshotManager)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := NewScheduler(manager, baskets, testConfig(), zap.NewNop())
	require.NoError(t, err)

	summary := s.RunAll(ctx)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	assert.Len(t, summary.Errors, 2)
	manager.AssertNotCalled(t, "Recompute")
}

func TestScheduler_StartStop(t *testing.T) {
	baskets := new(MockBasketRepository)
	manager := new(MockSnapshotManager)

	s, err := NewScheduler(manager, baskets, testConfig(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start must be rejected")

	status := s.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, "30 2 * * *", status.Schedule)
	assert.False(t, status.NextRun.IsZero())

	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop(), "second stop must be rejected")
	assert.False(t, s.GetStatus().Running)
}

func TestScheduler_TriggerManualRun(t *testing.T) {
	b := namedBasket("solo")

	baskets := new(MockBasketRepository)
	baskets.On("ListActive", mock.Anything).Return([]*entities.Basket{b}, nil)

	done := make(chan struct{})
	manager := new(MockSnapshotManager)
	manager.On("Recompute", mock.Anything, b.ID).
		Return(&entities.PerformanceSnapshot{BasketID: b.ID}, nil).
		Run(func(mock.Arguments) { close(done) })

	s, err := NewScheduler(manager, baskets, testConfig(), zap.NewNop())
	require.NoError(t, err)

	// Not running yet.
	assert.Error(t, s.TriggerManualRun())

	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, s.TriggerManualRun())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manual run never reached the snapshot manager")
	}
}

func TestNewScheduler_InvalidTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := NewScheduler(new(MockSnapshotManager), new(MockBasketRepository), cfg, zap.NewNop())
	assert.Error(t, err)
}
