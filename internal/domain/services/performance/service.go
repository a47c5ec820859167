package performance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/domain/repositories"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
)

// Config carries the engine's policy knobs.
type Config struct {
	// FetchTimeout bounds each instrument's price fetch. A timeout
	// degrades that instrument, never the basket.
	FetchTimeout time.Duration
	// MatchToleranceDays bounds nearest-date lookups outside the rolling
	// analyzer (CAGR anchors, lumpsum entry, SIP purchase dates).
	MatchToleranceDays int
	// LumpsumAmount is the nominal one-time investment split by weight.
	LumpsumAmount float64
	// SIPMonthlyAmount is the nominal recurring investment split by weight.
	SIPMonthlyAmount float64
	// CAGRShortYears and CAGRLongYears are the two headline CAGR horizons.
	CAGRShortYears int
	CAGRLongYears  int
	// Analyzer is the rolling window policy.
	Analyzer AnalyzerConfig
}

// DefaultConfig returns the production policy: 3Y/5Y CAGR, a 3-year
// rolling window, 100k lumpsum and 10k monthly SIP nominals.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:       15 * time.Second,
		MatchToleranceDays: 7,
		LumpsumAmount:      100000,
		SIPMonthlyAmount:   10000,
		CAGRShortYears:     3,
		CAGRLongYears:      5,
		Analyzer:           DefaultAnalyzerConfig(),
	}
}

// Engine runs one basket's full computation pass: fetch every instrument's
// series, then derive per-instrument and basket-level metrics plus the
// rolling window distribution. All calculator work is synchronous CPU work;
// the only suspension points are the per-instrument fetches, which all
// complete before any calculator runs.
type Engine struct {
	provider repositories.PriceProvider
	cfg      Config
	analyzer *Analyzer
	clock    func() time.Time
	logger   *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(provider repositories.PriceProvider, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		provider: provider,
		cfg:      cfg,
		analyzer: NewAnalyzer(cfg.Analyzer),
		clock:    time.Now,
		logger:   logger,
	}
}

// WithClock replaces the engine's clock. Tests pin "today" with it.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// ComputeSnapshot computes a full performance snapshot for the basket.
// Instruments whose fetch fails, times out or returns an empty series are
// degraded: excluded from weighted aggregation with weight renormalized
// over the rest. Only a basket with no usable instrument at all fails.
func (e *Engine) ComputeSnapshot(ctx context.Context, basket *entities.Basket) (*entities.PerformanceSnapshot, error) {
	now := DateOnly(e.clock())

	series := e.fetchAll(ctx, basket)
	if len(series) == 0 {
		return nil, apperrors.ErrDataUnavailable.WithDetail("basket_id", basket.ID.String())
	}

	weights := basket.WeightFractions()

	instruments := make([]entities.InstrumentMetrics, 0, len(basket.Positions))
	shortCAGRs := make(map[string]*float64, len(series))
	longCAGRs := make(map[string]*float64, len(series))
	sims := make(map[string]*SIPResult, len(series))

	for _, pos := range basket.Positions {
		m := entities.InstrumentMetrics{
			InstrumentID:  pos.InstrumentID,
			DisplayName:   pos.DisplayName,
			WeightPercent: pos.WeightPercent,
		}

		s, ok := series[pos.InstrumentID]
		if !ok {
			instruments = append(instruments, m)
			continue
		}
		m.DataAvailable = true

		m.CAGR3Y = e.cagrOverYears(s, e.cfg.CAGRShortYears, now)
		m.CAGR5Y = e.cagrOverYears(s, e.cfg.CAGRLongYears, now)
		shortCAGRs[pos.InstrumentID] = m.CAGR3Y
		longCAGRs[pos.InstrumentID] = m.CAGR5Y

		sipStart := now.AddDate(-e.cfg.CAGRShortYears, 0, 0)
		sim := SimulateSIP(s, sipStart, e.cfg.SIPMonthlyAmount, weights[pos.InstrumentID], e.cfg.MatchToleranceDays)
		sims[pos.InstrumentID] = sim
		m.SIPXIRR = solveSIPRate(sim)

		rolling := e.analyzer.AnalyzeInstrument(s)
		m.Rolling = &rolling

		instruments = append(instruments, m)
	}

	basketMetrics := entities.BasketMetrics{
		CAGR3Y: WeightedAverage(shortCAGRs, weights),
		CAGR5Y: WeightedAverage(longCAGRs, weights),
	}
	e.aggregateLumpsum(&basketMetrics, series, weights, now)
	e.aggregateSIP(&basketMetrics, sims)

	rolling := e.analyzer.Analyze(series, weights)

	return &entities.PerformanceSnapshot{
		BasketID:        basket.ID,
		CalculationDate: now,
		Basket:          basketMetrics,
		Instruments:     instruments,
		Rolling:         rolling,
		ComputedAt:      e.clock(),
	}, nil
}

// fetchAll resolves every position's series before any computation. Each
// fetch carries its own timeout so a hung provider degrades one instrument
// instead of stalling the pass.
func (e *Engine) fetchAll(ctx context.Context, basket *entities.Basket) map[string]*Series {
	series := make(map[string]*Series, len(basket.Positions))
	for _, pos := range basket.Positions {
		fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
		points, err := e.provider.GetHistoricalSeries(fetchCtx, pos.InstrumentID)
		cancel()

		if err != nil {
			e.logger.Warn("price fetch failed, degrading instrument",
				zap.String("basket_id", basket.ID.String()),
				zap.String("instrument_id", pos.InstrumentID),
				zap.Error(err),
			)
			continue
		}
		if len(points) == 0 {
			e.logger.Warn("empty price series, degrading instrument",
				zap.String("basket_id", basket.ID.String()),
				zap.String("instrument_id", pos.InstrumentID),
			)
			continue
		}

		s := NewSeries(pos.InstrumentID, points)
		if s.Empty() {
			continue
		}
		series[pos.InstrumentID] = s
	}
	return series
}

// cagrOverYears anchors the growth measurement at the nearest priced date
// on or after now-years and the latest price point.
func (e *Engine) cagrOverYears(s *Series, years int, now time.Time) *float64 {
	start, ok := s.NearestOnOrAfter(now.AddDate(-years, 0, 0), e.cfg.MatchToleranceDays)
	if !ok {
		return nil
	}
	last, ok := s.Last()
	if !ok || !last.Date.After(start.Date) {
		return nil
	}
	elapsedDays := last.Date.Sub(start.Date).Hours() / 24
	return CompoundGrowthRate(start.NAV, last.NAV, elapsedDays)
}
