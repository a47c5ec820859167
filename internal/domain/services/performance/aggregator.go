package performance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/basketfolio/folio_service/internal/domain/entities"
)

// aggregateLumpsum models a nominal one-time investment split by weight at
// the short-horizon entry date and valued at each instrument's latest
// price. Instruments without a matched entry date are excluded from both
// the invested and value totals.
func (e *Engine) aggregateLumpsum(m *entities.BasketMetrics, series map[string]*Series, weights map[string]float64, now time.Time) {
	entryTarget := now.AddDate(-e.cfg.CAGRShortYears, 0, 0)

	var invested, value float64
	for id, s := range series {
		w := weights[id]
		if w <= 0 {
			continue
		}
		entry, ok := s.NearestOnOrAfter(entryTarget, e.cfg.MatchToleranceDays)
		if !ok {
			continue
		}
		last, ok := s.Last()
		if !ok || !last.Date.After(entry.Date) {
			continue
		}

		share := e.cfg.LumpsumAmount * w
		invested += share
		value += share / entry.NAV * last.NAV
	}

	m.LumpsumInvested = decimal.NewFromFloat(invested).Round(2)
	m.LumpsumValue = decimal.NewFromFloat(value).Round(2)
	if invested > 0 {
		pct := (value - invested) / invested * 100
		m.LumpsumReturnPercent = &pct
	}
}

// aggregateSIP merges every instrument's periodic flows into one combined
// ledger with a single terminal redemption, then runs one basket-level
// rate solve. A weighted average of per-instrument rates would misstate
// the basket because it ignores the true combined cash timing.
func (e *Engine) aggregateSIP(m *entities.BasketMetrics, sims map[string]*SIPResult) {
	var flows []entities.CashFlow
	var invested, terminal float64
	var terminalDate time.Time

	for _, sim := range sims {
		if sim == nil || sim.Periods == 0 {
			continue
		}
		flows = append(flows, sim.Flows...)
		invested += sim.Invested
		terminal += sim.TerminalValue
		if sim.TerminalDate.After(terminalDate) {
			terminalDate = sim.TerminalDate
		}
	}

	m.SIPInvested = decimal.NewFromFloat(invested).Round(2)
	m.SIPValue = decimal.NewFromFloat(terminal).Round(2)

	if len(flows) == 0 || terminal <= 0 {
		return
	}
	flows = append(flows, entities.CashFlow{Date: terminalDate, Amount: terminal})

	rate, err := InternalRateOfReturn(flows)
	if err != nil || rate == nil {
		return
	}
	m.SIPXIRR = rate
}

// solveSIPRate closes one instrument's simulated ledger with its terminal
// value and solves the rate. Any solver failure leaves the metric
// undefined.
func solveSIPRate(sim *SIPResult) *float64 {
	if sim == nil || sim.Periods == 0 || sim.TerminalValue <= 0 {
		return nil
	}
	flows := make([]entities.CashFlow, 0, len(sim.Flows)+1)
	flows = append(flows, sim.Flows...)
	flows = append(flows, entities.CashFlow{Date: sim.TerminalDate, Amount: sim.TerminalValue})

	rate, err := InternalRateOfReturn(flows)
	if err != nil {
		return nil
	}
	return rate
}
