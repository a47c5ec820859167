package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/basketfolio/folio_service/internal/domain/entities"
)

// PriceProvider fetches an instrument's full historical price series from
// the upstream data source. An empty result or an error both mean "no data
// for this instrument" to callers, never a basket-level failure.
type PriceProvider interface {
	GetHistoricalSeries(ctx context.Context, instrumentID string) ([]entities.PricePoint, error)
}

// BasketRepository supplies basket configuration and accepts the rolling
// summary write-back.
type BasketRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Basket, error)
	ListActive(ctx context.Context) ([]*entities.Basket, error)
	Create(ctx context.Context, basket *entities.Basket) error
	UpdateRollingSummary(ctx context.Context, id uuid.UUID, stats *entities.RollingStats) error
}

// SnapshotRepository persists dated performance snapshots under the
// composite key (basket_id, calculation_date).
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot *entities.PerformanceSnapshot) error
	Find(ctx context.Context, basketID uuid.UUID, date time.Time) (*entities.PerformanceSnapshot, error)
	FindLatest(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error)
}

// SnapshotCache is the fast same-day lookup layer in front of the snapshot
// store. Get returns (nil, nil) on a miss.
type SnapshotCache interface {
	Get(ctx context.Context, basketID uuid.UUID, date time.Time) (*entities.PerformanceSnapshot, error)
	Set(ctx context.Context, snapshot *entities.PerformanceSnapshot) error
}
