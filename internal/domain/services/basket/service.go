package basket

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/domain/repositories"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
)

// weightSumTolerance is how far from 100 the configured weights may drift.
const weightSumTolerance = 0.01

// CreateRequest is the configuration payload for a new basket.
type CreateRequest struct {
	Name      string            `json:"name" validate:"required,min=1,max=200"`
	Positions []PositionRequest `json:"positions" validate:"required,min=1,dive"`
	IsActive  bool              `json:"is_active"`
}

// PositionRequest is one weighted instrument in the payload.
type PositionRequest struct {
	InstrumentID  string    `json:"instrument_id" validate:"required"`
	DisplayName   string    `json:"display_name" validate:"required"`
	WeightPercent float64   `json:"weight_percent" validate:"required,gt=0,lte=100"`
	InceptionDate time.Time `json:"inception_date"`
}

// Service handles basket configuration writes. The weight-sum invariant is
// enforced here, at configuration time, never during computation.
type Service struct {
	repo     repositories.BasketRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a basket configuration service.
func NewService(repo repositories.BasketRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create validates and persists a new basket.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*entities.Basket, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.ErrValidation.Wrap(err)
	}

	seen := make(map[string]bool, len(req.Positions))
	var weightSum float64
	for _, p := range req.Positions {
		if seen[p.InstrumentID] {
			return nil, apperrors.ErrValidation.WithDetail("instrument_id", p.InstrumentID).
				Wrap(fmt.Errorf("duplicate instrument %s", p.InstrumentID))
		}
		seen[p.InstrumentID] = true
		weightSum += p.WeightPercent
	}
	if math.Abs(weightSum-100) > weightSumTolerance {
		return nil, apperrors.ErrValidation.
			WithDetail("weight_sum", fmt.Sprintf("%.4f", weightSum)).
			Wrap(fmt.Errorf("position weights must sum to 100, got %.4f", weightSum))
	}

	now := time.Now().UTC()
	basket := &entities.Basket{
		ID:        uuid.New(),
		Name:      req.Name,
		IsActive:  req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, p := range req.Positions {
		basket.Positions = append(basket.Positions, entities.Position{
			InstrumentID:  p.InstrumentID,
			DisplayName:   p.DisplayName,
			WeightPercent: p.WeightPercent,
			InceptionDate: p.InceptionDate,
		})
	}

	if err := s.repo.Create(ctx, basket); err != nil {
		return nil, err
	}
	return basket, nil
}

// Get returns one basket or BASKET_NOT_FOUND.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entities.Basket, error) {
	basket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, apperrors.ErrBasketNotFound.WithDetail("basket_id", id.String())
	}
	return basket, nil
}

// ListActive returns every active basket.
func (s *Service) ListActive(ctx context.Context) ([]*entities.Basket, error) {
	return s.repo.ListActive(ctx)
}
