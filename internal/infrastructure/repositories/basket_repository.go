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

// BasketRepository handles basket configuration persistence.
type BasketRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBasketRepository creates a new basket repository.
func NewBasketRepository(db *sqlx.DB, logger *zap.Logger) *BasketRepository {
	return &BasketRepository{db: db, logger: logger}
}

type basketRow struct {
	ID                   uuid.UUID `db:"id"`
	Name                 string    `db:"name"`
	Positions            []byte    `db:"positions"`
	IsActive             bool      `db:"is_active"`
	LatestRollingSummary []byte    `db:"latest_rolling_summary"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (r basketRow) toEntity() (*entities.Basket, error) {
	basket := &entities.Basket{
		ID:        r.ID,
		Name:      r.Name,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Positions, &basket.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	if len(r.LatestRollingSummary) > 0 {
		var stats entities.RollingStats
		if err := json.Unmarshal(r.LatestRollingSummary, &stats); err != nil {
			return nil, fmt.Errorf("failed to decode rolling summary: %w", err)
		}
		basket.LatestRollingSummary = &stats
	}
	return basket, nil
}

// Create persists a new basket.
func (r *BasketRepository) Create(ctx context.Context, basket *entities.Basket) error {
	positions, err := json.Marshal(basket.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	query := `
		INSERT INTO baskets (id, name, positions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		basket.ID, basket.Name, positions, basket.IsActive, basket.CreatedAt, basket.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create basket",
			zap.Error(err),
			zap.String("basket_id", basket.ID.String()),
		)
		return fmt.Errorf("failed to create basket: %w", err)
	}

	r.logger.Info("basket created",
		zap.String("basket_id", basket.ID.String()),
		zap.String("name", basket.Name),
		zap.Int("positions", len(basket.Positions)),
	)
	return nil
}

// GetByID fetches one basket; (nil, nil) when it does not exist.
func (r *BasketRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Basket, error) {
	query := `
		SELECT id, name, positions, is_active, latest_rolling_summary, created_at, updated_at
		FROM baskets
		WHERE id = $1
	`
	var row basketRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query basket: %w", err)
	}
	return row.toEntity()
}

// ListActive returns all active baskets, oldest first so scheduler runs
// are ordered deterministically.
func (r *BasketRepository) ListActive(ctx context.Context) ([]*entities.Basket, error) {
	query := `
		SELECT id, name, positions, is_active, latest_rolling_summary, created_at, updated_at
		FROM baskets
		WHERE is_active = TRUE
		ORDER BY created_at ASC
	`
	var rows []basketRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query active baskets: %w", err)
	}

	baskets := make([]*entities.Basket, 0, len(rows))
	for _, row := range rows {
		basket, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		baskets = append(baskets, basket)
	}
	return baskets, nil
}

// UpdateRollingSummary overwrites the basket's long-lived rolling summary
// metadata.
func (r *BasketRepository) UpdateRollingSummary(ctx context.Context, id uuid.UUID, stats *entities.RollingStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode rolling summary: %w", err)
	}

	query := `
		UPDATE baskets
		SET latest_rolling_summary = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("failed to update rolling summary: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("basket %s not found", id)
	}
	return nil
}
