package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashFlow is a dated signed amount used only inside the rate-of-return
// solver. Negative amounts are investments, positive amounts redemptions.
// Never persisted.
type CashFlow struct {
	Date   time.Time
	Amount float64
}

// RollingStats describes the distribution of annualized returns across all
// historical entry points for a fixed holding window. Insufficient is set
// when fewer than two completed windows were found; the numeric fields are
// meaningless in that case.
type RollingStats struct {
	Mean               float64   `json:"mean"`
	Median             float64   `json:"median"`
	Min                float64   `json:"min"`
	Max                float64   `json:"max"`
	StdDev             float64   `json:"std_dev"`
	PositivePercentage float64   `json:"positive_percentage"`
	SampleCount        int       `json:"sample_count"`
	WindowStart        time.Time `json:"window_start"`
	WindowEnd          time.Time `json:"window_end"`
	Insufficient       bool      `json:"insufficient"`
}

// BasketMetrics holds basket-level return metrics. Pointer fields are nil
// when the metric is undefined (insufficient data, solver non-convergence);
// they must render as null, never as zero.
type BasketMetrics struct {
	CAGR3Y               *float64        `json:"cagr_3y"`
	CAGR5Y               *float64        `json:"cagr_5y"`
	LumpsumInvested      decimal.Decimal `json:"lumpsum_invested"`
	LumpsumValue         decimal.Decimal `json:"lumpsum_value"`
	LumpsumReturnPercent *float64        `json:"lumpsum_return_percent"`
	SIPInvested          decimal.Decimal `json:"sip_invested"`
	SIPValue             decimal.Decimal `json:"sip_value"`
	SIPXIRR              *float64        `json:"sip_xirr"`
}

// InstrumentMetrics holds per-instrument return metrics within a basket.
type InstrumentMetrics struct {
	InstrumentID  string        `json:"instrument_id"`
	DisplayName   string        `json:"display_name"`
	WeightPercent float64       `json:"weight_percent"`
	CAGR3Y        *float64      `json:"cagr_3y"`
	CAGR5Y        *float64      `json:"cagr_5y"`
	SIPXIRR       *float64      `json:"sip_xirr"`
	Rolling       *RollingStats `json:"rolling,omitempty"`
	DataAvailable bool          `json:"data_available"`
}

// PerformanceSnapshot is the persisted result of one full basket
// computation, keyed by (basket_id, calculation_date). At most one exists
// per basket per calendar day; reruns replace it atomically.
type PerformanceSnapshot struct {
	BasketID        uuid.UUID           `json:"basket_id" db:"basket_id"`
	CalculationDate time.Time           `json:"calculation_date" db:"calculation_date"`
	Basket          BasketMetrics       `json:"basket_metrics"`
	Instruments     []InstrumentMetrics `json:"instrument_metrics"`
	Rolling         RollingStats        `json:"rolling_stats"`
	ComputedAt      time.Time           `json:"computed_at" db:"computed_at"`
}

// RunError identifies one basket that failed during a scheduler run.
type RunError struct {
	BasketID   uuid.UUID `json:"basket_id"`
	BasketName string    `json:"basket_name"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RunSummary reports the outcome of one pass over all active baskets.
type RunSummary struct {
	Total      int        `json:"total"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Errors     []RunError `json:"errors"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}
