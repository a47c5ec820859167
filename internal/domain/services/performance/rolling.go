package performance

import (
	"math"
	"time"

	"github.com/basketfolio/folio_service/internal/domain/entities"
)

// AnalyzerConfig carries the rolling window policy knobs. The match
// tolerance and the buy-and-hold weighting are policy choices, so they are
// configuration rather than constants.
type AnalyzerConfig struct {
	// WindowDays is the holding period measured from each entry date.
	WindowDays int
	// MatchToleranceDays bounds how far from the ideal window end a common
	// calendar date may fall and still complete the window.
	MatchToleranceDays int
	// CoverageThreshold is the minimum realized weight fraction for an
	// entry date to count; below it the date is dropped as insufficiently
	// covered.
	CoverageThreshold float64
	// MinSamples is the smallest window count that yields numeric
	// statistics.
	MinSamples int
}

// DefaultAnalyzerConfig returns the 3-year window policy.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		WindowDays:         1095,
		MatchToleranceDays: 7,
		CoverageThreshold:  0.99,
		MinSamples:         2,
	}
}

// Analyzer derives the distribution of annualized returns an investor
// would have realized entering on every feasible historical date and
// holding for a fixed window.
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer creates an Analyzer with the given policy.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 1095
	}
	if cfg.MinSamples < 2 {
		cfg.MinSamples = 2
	}
	return &Analyzer{cfg: cfg}
}

// Analyze walks every candidate entry date on the instruments' common
// calendar, completes each window against the nearest common date around
// entry+window, and summarizes the annualized buy-and-hold returns.
// weights maps instrument -> fraction of the full basket (summing to 1
// across the whole basket, including instruments that may be absent from
// series); absent weight renormalizes over the instruments that have data.
// Fewer than MinSamples completed windows yields a result tagged
// Insufficient.
func (a *Analyzer) Analyze(series map[string]*Series, weights map[string]float64) entities.RollingStats {
	stats := entities.RollingStats{Insufficient: true}

	available := make(map[string]*Series, len(series))
	var coveredWeight, totalWeight float64
	for id, w := range weights {
		totalWeight += w
		if s, ok := series[id]; ok && !s.Empty() {
			available[id] = s
			coveredWeight += w
		}
	}
	if len(available) == 0 || totalWeight == 0 || coveredWeight == 0 {
		return stats
	}
	// Entry dates come from the common calendar of the instruments that
	// have data at all; per-date coverage is therefore uniform, and a
	// basket missing too much weight produces no usable windows.
	if coveredWeight/totalWeight < a.cfg.CoverageThreshold {
		return stats
	}

	calendar := CommonCalendar(available)
	if len(calendar) == 0 {
		return stats
	}

	window := time.Duration(a.cfg.WindowDays) * 24 * time.Hour
	tolerance := time.Duration(a.cfg.MatchToleranceDays) * 24 * time.Hour
	years := float64(a.cfg.WindowDays) / DaysPerYear

	var returns []float64
	var firstStart, lastEnd time.Time

	searchFrom := 0
	for i, start := range calendar {
		target := start.Add(window)

		// The calendar is ascending, so the match scan never moves
		// backwards across candidate starts.
		if searchFrom < i+1 {
			searchFrom = i + 1
		}
		endIdx, ok := matchWindowEnd(calendar, searchFrom, target, tolerance)
		if !ok {
			// Most recent entries have not completed their window yet.
			continue
		}
		searchFrom = endIdx
		end := calendar[endIdx]

		// Renormalize over the covered weight: an instrument without data
		// is excluded from the factor, never priced in as a total loss.
		var factor float64
		for id, s := range available {
			startPoint, okStart := s.At(start)
			endPoint, okEnd := s.At(end)
			if !okStart || !okEnd {
				continue
			}
			factor += (weights[id] / coveredWeight) * (endPoint.NAV / startPoint.NAV)
		}
		if factor <= 0 {
			continue
		}

		annualized := (math.Pow(factor, 1/years) - 1) * 100
		returns = append(returns, annualized)
		if firstStart.IsZero() {
			firstStart = start
		}
		lastEnd = end
	}

	if len(returns) < a.cfg.MinSamples {
		stats.SampleCount = len(returns)
		return stats
	}

	mean, median, min, max, stdDev, positivePct := describeSample(returns)
	return entities.RollingStats{
		Mean:               mean,
		Median:             median,
		Min:                min,
		Max:                max,
		StdDev:             stdDev,
		PositivePercentage: positivePct,
		SampleCount:        len(returns),
		WindowStart:        firstStart,
		WindowEnd:          lastEnd,
		Insufficient:       false,
	}
}

// AnalyzeInstrument runs the same procedure for a single instrument with
// weight 1.
func (a *Analyzer) AnalyzeInstrument(s *Series) entities.RollingStats {
	if s == nil || s.Empty() {
		return entities.RollingStats{Insufficient: true}
	}
	id := s.InstrumentID()
	return a.Analyze(map[string]*Series{id: s}, map[string]float64{id: 1})
}

// matchWindowEnd finds the calendar index whose date lies nearest the
// target within ±tolerance, scanning forward from the given index.
func matchWindowEnd(calendar []time.Time, from int, target time.Time, tolerance time.Duration) (int, bool) {
	bestIdx := -1
	var bestDist time.Duration
	for i := from; i < len(calendar); i++ {
		dist := calendar[i].Sub(target)
		if dist > tolerance {
			break
		}
		if dist < 0 {
			dist = -dist
		}
		if dist <= tolerance && (bestIdx == -1 || dist < bestDist) {
			bestIdx, bestDist = i, dist
		}
	}
	return bestIdx, bestIdx != -1
}
