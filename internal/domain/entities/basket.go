package entities

import (
	"time"

	"github.com/google/uuid"
)

// Position is one weighted instrument inside a basket. Weights are
// percentages; a valid basket's positions sum to 100 (±0.01), enforced
// when the basket is written, not when it is computed.
type Position struct {
	InstrumentID  string    `json:"instrument_id" db:"instrument_id"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	WeightPercent float64   `json:"weight_percent" db:"weight_percent"`
	InceptionDate time.Time `json:"inception_date" db:"inception_date"`
}

// Basket is a configured set of weighted instruments. LatestRollingSummary
// is long-lived configuration metadata, overwritten on every recompute; it
// is distinct from the dated daily snapshots.
type Basket struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	Name                 string        `json:"name" db:"name"`
	Positions            []Position    `json:"positions"` // stored as JSON in DB
	IsActive             bool          `json:"is_active" db:"is_active"`
	LatestRollingSummary *RollingStats `json:"latest_rolling_summary,omitempty"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// PricePoint is the per-unit value of an instrument on a trading date.
// A per-instrument series is ascending and may contain gaps.
type PricePoint struct {
	InstrumentID string    `json:"instrument_id"`
	Date         time.Time `json:"date"`
	NAV          float64   `json:"nav"`
}

// WeightFractions returns the basket's weights as instrument -> fraction
// of 1.0.
func (b *Basket) WeightFractions() map[string]float64 {
	weights := make(map[string]float64, len(b.Positions))
	for _, p := range b.Positions {
		weights[p.InstrumentID] = p.WeightPercent / 100.0
	}
	return weights
}
