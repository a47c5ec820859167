package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
)

// SnapshotRepository persists dated performance snapshots. The composite
// key (basket_id, calculation_date) makes the daily write an idempotent
// replace: recomputing the same day overwrites the same row, so no reader
// ever sees a half-written snapshot.
type SnapshotRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sqlx.DB, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger}
}

type snapshotRow struct {
	BasketID          uuid.UUID `db:"basket_id"`
	CalculationDate   time.Time `db:"calculation_date"`
	BasketMetrics     []byte    `db:"basket_metrics"`
	InstrumentMetrics []byte    `db:"instrument_metrics"`
	RollingStats      []byte    `db:"rolling_stats"`
	ComputedAt        time.Time `db:"computed_at"`
}

func (r snapshotRow) toEntity() (*entities.PerformanceSnapshot, error) {
	snap := &entities.PerformanceSnapshot{
		BasketID:        r.BasketID,
		CalculationDate: r.CalculationDate.UTC(),
		ComputedAt:      r.ComputedAt,
	}
	if err := json.Unmarshal(r.BasketMetrics, &snap.Basket); err != nil {
		return nil, fmt.Errorf("failed to decode basket metrics: %w", err)
	}
	if err := json.Unmarshal(r.InstrumentMetrics, &snap.Instruments); err != nil {
		return nil, fmt.Errorf("failed to decode instrument metrics: %w", err)
	}
	if err := json.Unmarshal(r.RollingStats, &snap.Rolling); err != nil {
		return nil, fmt.Errorf("failed to decode rolling stats: %w", err)
	}
	return snap, nil
}

// Upsert writes the snapshot, replacing any existing row for the same
// basket and day.
func (r *SnapshotRepository) Upsert(ctx context.Context, snap *entities.PerformanceSnapshot) error {
	basketMetrics, err := json.Marshal(snap.Basket)
	if err != nil {
		return fmt.Errorf("failed to encode basket metrics: %w", err)
	}
	instrumentMetrics, err := json.Marshal(snap.Instruments)
	if err != nil {
		return fmt.Errorf("failed to encode instrument metrics: %w", err)
	}
	rollingStats, err := json.Marshal(snap.Rolling)
	if err != nil {
		return fmt.Errorf("failed to encode rolling stats: %w", err)
	}

	query := `
		INSERT INTO performance_snapshots
			(basket_id, calculation_date, basket_metrics, instrument_metrics, rolling_stats, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (basket_id, calculation_date) DO UPDATE SET
			basket_metrics = EXCLUDED.basket_metrics,
			instrument_metrics = EXCLUDED.instrument_metrics,
			rolling_stats = EXCLUDED.rolling_stats,
			computed_at = EXCLUDED.computed_at
	`
	_, err = r.db.ExecContext(ctx, query,
		snap.BasketID, snap.CalculationDate, basketMetrics, instrumentMetrics, rollingStats, snap.ComputedAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert snapshot",
			zap.Error(err),
			zap.String("basket_id", snap.BasketID.String()),
			zap.Time("calculation_date", snap.CalculationDate),
		)
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Find returns the snapshot for one basket and day; (nil, nil) on miss.
func (r *SnapshotRepository) Find(ctx context.Context, basketID uuid.UUID, date time.Time) (*entities.PerformanceSnapshot, error) {
	query := `
		SELECT basket_id, calculation_date, basket_metrics, instrument_metrics, rolling_stats, computed_at
		FROM performance_snapshots
		WHERE basket_id = $1 AND calculation_date = $2
	`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, basketID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return row.toEntity()
}

// FindLatest returns the most recent snapshot for the basket; (nil, nil)
// when none has been computed yet. Prior days are retained as history.
func (r *SnapshotRepository) FindLatest(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error) {
	query := `
		SELECT basket_id, calculation_date, basket_metrics, instrument_metrics, rolling_stats, computed_at
		FROM performance_snapshots
		WHERE basket_id = $1
		ORDER BY calculation_date DESC
		LIMIT 1
	`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, basketID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return row.toEntity()
}
