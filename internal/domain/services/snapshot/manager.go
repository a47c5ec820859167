package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/domain/repositories"
	"github.com/basketfolio/folio_service/internal/domain/services/performance"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
	"github.com/basketfolio/folio_service/pkg/metrics"
)

// Engine is the computation the manager fronts.
type Engine interface {
	ComputeSnapshot(ctx context.Context, basket *entities.Basket) (*entities.PerformanceSnapshot, error)
}

// Manager maintains the once-per-day snapshot per basket: it serves the
// cached result when today's already exists and computes on miss. Writes
// are idempotent replaces keyed by (basket, day), so a read racing an
// in-flight recompute at worst observes the prior day's snapshot; no
// cross-request locking is needed.
type Manager struct {
	engine    Engine
	baskets   repositories.BasketRepository
	snapshots repositories.SnapshotRepository
	cache     repositories.SnapshotCache
	clock     func() time.Time
	logger    *zap.Logger
}

// NewManager creates a Manager. cache may be nil, in which case only the
// persistent store is consulted.
func NewManager(
	engine Engine,
	baskets repositories.BasketRepository,
	snapshots repositories.SnapshotRepository,
	cache repositories.SnapshotCache,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		engine:    engine,
		baskets:   baskets,
		snapshots: snapshots,
		cache:     cache,
		clock:     time.Now,
		logger:    logger,
	}
}

// WithClock replaces the manager's clock. Tests pin "today" with it.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Today returns the current UTC calendar day.
func (m *Manager) Today() time.Time {
	return performance.DateOnly(m.clock())
}

// GetOrCompute returns today's snapshot for the basket, computing and
// persisting it first if the day has rolled over since the last compute.
func (m *Manager) GetOrCompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	today := m.Today()

	if m.cache != nil {
		if snap, err := m.cache.Get(ctx, basketID, today); err != nil {
			m.logger.Warn("snapshot cache read failed",
				zap.String("basket_id", basketID.String()),
				zap.Error(err),
			)
		} else if snap != nil {
			metrics.SnapshotCacheLookups.WithLabelValues("redis", "hit").Inc()
			return snap, nil
		}
		metrics.SnapshotCacheLookups.WithLabelValues("redis", "miss").Inc()
	}

	snap, err := m.snapshots.Find(ctx, basketID, today)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		metrics.SnapshotCacheLookups.WithLabelValues("store", "hit").Inc()
		m.fillCache(ctx, snap)
		return snap, nil
	}
	metrics.SnapshotCacheLookups.WithLabelValues("store", "miss").Inc()

	return m.Recompute(ctx, basketID)
}

// Recompute unconditionally recomputes the basket, upserts today's
// snapshot and overwrites the basket's long-lived rolling summary. Used by
// the scheduler and the admin trigger; safe to rerun, the upsert replaces
// the same-day row.
func (m *Manager) Recompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	basket, err := m.baskets.GetByID(ctx, basketID)
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, apperrors.ErrBasketNotFound.WithDetail("basket_id", basketID.String())
	}

	started := m.clock()
	snap, err := m.engine.ComputeSnapshot(ctx, basket)
	metrics.SnapshotComputeDuration.Observe(m.clock().Sub(started).Seconds())
	if err != nil {
		metrics.SnapshotsComputedTotal.WithLabelValues("recompute", "error").Inc()
		return nil, err
	}
	metrics.SnapshotsComputedTotal.WithLabelValues("recompute", "success").Inc()

	if err := m.snapshots.Upsert(ctx, snap); err != nil {
		return nil, err
	}

	rolling := snap.Rolling
	if err := m.baskets.UpdateRollingSummary(ctx, basketID, &rolling); err != nil {
		// The snapshot is already durable; a failed summary write-back is
		// recoverable on the next run.
		m.logger.Warn("rolling summary write-back failed",
			zap.String("basket_id", basketID.String()),
			zap.Error(err),
		)
	}

	m.fillCache(ctx, snap)

	m.logger.Info("snapshot recomputed",
		zap.String("basket_id", basketID.String()),
		zap.Time("calculation_date", snap.CalculationDate),
		zap.Int("rolling_samples", snap.Rolling.SampleCount),
	)
	return snap, nil
}

// Latest serves the read path: today's snapshot if cached, otherwise the
// most recent persisted one, otherwise compute-on-miss.
func (m *Manager) Latest(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	today := m.Today()

	if m.cache != nil {
		if snap, err := m.cache.Get(ctx, basketID, today); err == nil && snap != nil {
			return snap, nil
		}
	}

	snap, err := m.snapshots.FindLatest(ctx, basketID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return snap, nil
	}

	return m.GetOrCompute(ctx, basketID)
}

func (m *Manager) fillCache(ctx context.Context, snap *entities.PerformanceSnapshot) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, snap); err != nil {
		m.logger.Warn("snapshot cache write failed",
			zap.String("basket_id", snap.BasketID.String()),
			zap.Error(err),
		)
	}
}
