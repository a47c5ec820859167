package performance

import (
	"math"
	"sort"
	"time"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
)

// DaysPerYear is the average calendar year length used for annualization.
const DaysPerYear = 365.25

const (
	irrMaxNewtonIterations    = 100
	irrMaxBisectionIterations = 200
	irrNPVTolerance           = 1e-6
	irrRateTolerance          = 1e-7
)

// CompoundGrowthRate annualizes the growth from startPrice to endPrice over
// elapsedDays, as a percentage. Returns nil (undefined) when the inputs
// cannot produce a meaningful rate.
func CompoundGrowthRate(startPrice, endPrice float64, elapsedDays float64) *float64 {
	if startPrice <= 0 || elapsedDays <= 0 {
		return nil
	}
	rate := (math.Pow(endPrice/startPrice, DaysPerYear/elapsedDays) - 1) * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil
	}
	return &rate
}

// InternalRateOfReturn solves for the annualized rate r such that the net
// present value of the dated cashflows is zero:
//
//	Σ amount_i / (1+r)^(days_i/365) = 0
//
// Newton-Raphson with a numerical derivative, falling back to bisection
// when Newton fails to converge. Requires at least two flows with at least
// one negative and one positive amount. Non-convergence yields (nil, nil):
// indeterminate, never a panic. The result is a percentage.
func InternalRateOfReturn(flows []entities.CashFlow) (*float64, error) {
	if len(flows) < 2 {
		return nil, apperrors.ErrInsufficientCashflows
	}

	var hasNegative, hasPositive bool
	for _, f := range flows {
		if f.Amount < 0 {
			hasNegative = true
		}
		if f.Amount > 0 {
			hasPositive = true
		}
	}
	if !hasNegative || !hasPositive {
		return nil, apperrors.ErrInsufficientCashflows
	}

	t0 := flows[0].Date
	for _, f := range flows[1:] {
		if f.Date.Before(t0) {
			t0 = f.Date
		}
	}

	npv := func(rate float64) float64 {
		var sum float64
		for _, f := range flows {
			years := f.Date.Sub(t0).Hours() / 24 / 365
			sum += f.Amount / math.Pow(1+rate, years)
		}
		return sum
	}

	if rate, ok := solveNewton(npv); ok {
		pct := rate * 100
		return &pct, nil
	}
	if rate, ok := solveBisection(npv); ok {
		pct := rate * 100
		return &pct, nil
	}
	return nil, nil
}

func solveNewton(npv func(float64) float64) (float64, bool) {
	rate := 0.1
	for i := 0; i < irrMaxNewtonIterations; i++ {
		value := npv(rate)
		if math.Abs(value) < irrNPVTolerance {
			return rate, true
		}

		const h = 1e-6
		derivative := (npv(rate+h) - npv(rate-h)) / (2 * h)
		if derivative == 0 || math.IsNaN(derivative) || math.IsInf(derivative, 0) {
			return 0, false
		}

		next := rate - value/derivative
		// The discount base must stay positive.
		if next <= -1 || math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		if math.Abs(next-rate) < irrRateTolerance {
			return next, true
		}
		rate = next
	}
	return 0, false
}

func solveBisection(npv func(float64) float64) (float64, bool) {
	lo, hi := -0.9999, 10.0
	fLo, fHi := npv(lo), npv(hi)
	if math.IsNaN(fLo) || math.IsNaN(fHi) || fLo*fHi > 0 {
		return 0, false
	}

	for i := 0; i < irrMaxBisectionIterations; i++ {
		mid := (lo + hi) / 2
		fMid := npv(mid)
		if math.Abs(fMid) < irrNPVTolerance || (hi-lo)/2 < irrRateTolerance {
			return mid, true
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}
	return 0, false
}

// SIPResult is the outcome of simulating a fixed recurring investment
// against one instrument's price series.
type SIPResult struct {
	Flows         []entities.CashFlow // negative periodic investments
	Invested      float64
	Units         float64
	TerminalValue float64 // units held at the latest price
	TerminalDate  time.Time
	Periods       int
}

// SimulateSIP invests amount × weightFraction on each monthly date from
// start, buying at the nearest on-or-after price point within
// toleranceDays. Periods falling into unpriced gaps are skipped. The
// terminal value marks the accumulated units at the latest price.
func SimulateSIP(s *Series, start time.Time, amount, weightFraction float64, toleranceDays int) *SIPResult {
	result := &SIPResult{}
	last, ok := s.Last()
	if !ok || amount <= 0 || weightFraction <= 0 {
		return result
	}

	share := amount * weightFraction
	for due := DateOnly(start); !due.After(last.Date); due = due.AddDate(0, 1, 0) {
		point, ok := s.NearestOnOrAfter(due, toleranceDays)
		if !ok || point.Date.After(last.Date) {
			continue
		}
		result.Flows = append(result.Flows, entities.CashFlow{Date: point.Date, Amount: -share})
		result.Units += share / point.NAV
		result.Invested += share
		result.Periods++
	}

	result.TerminalValue = result.Units * last.NAV
	result.TerminalDate = last.Date
	return result
}

// WeightedAverage combines per-instrument metrics into one basket metric.
// Instruments with an undefined (nil) value are excluded from both
// numerator and denominator, renormalizing weight over the rest. Returns
// nil only when no instrument has a defined value. Undefined never counts
// as zero.
func WeightedAverage(values map[string]*float64, weights map[string]float64) *float64 {
	var weightedSum, weightTotal float64
	for id, v := range values {
		if v == nil {
			continue
		}
		w := weights[id]
		if w <= 0 {
			continue
		}
		weightedSum += *v * w
		weightTotal += w
	}
	if weightTotal == 0 {
		return nil
	}
	avg := weightedSum / weightTotal
	return &avg
}

// mean, median and population standard deviation over a non-empty sample.
func describeSample(sample []float64) (mean, median, min, max, stdDev, positivePct float64) {
	n := float64(len(sample))

	min, max = sample[0], sample[0]
	var sum float64
	var positives int
	for _, v := range sample {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		if v > 0 {
			positives++
		}
	}
	mean = sum / n

	var variance float64
	for _, v := range sample {
		variance += (v - mean) * (v - mean)
	}
	stdDev = math.Sqrt(variance / n)

	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	positivePct = float64(positives) / n * 100
	return
}
