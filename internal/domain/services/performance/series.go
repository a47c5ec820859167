package performance

import (
	"sort"
	"time"

	"github.com/basketfolio/folio_service/internal/domain/entities"
)

// Series is one instrument's price history, sorted ascending by date and
// indexed for binary-search lookups. The rolling window analyzer resolves
// a date per candidate start, so lookups must not rescan the slice.
type Series struct {
	instrumentID string
	points       []entities.PricePoint
}

// NewSeries builds a Series from raw provider output. Points are copied,
// normalized to UTC midnight, filtered of non-positive prices and sorted.
func NewSeries(instrumentID string, points []entities.PricePoint) *Series {
	cleaned := make([]entities.PricePoint, 0, len(points))
	for _, p := range points {
		if p.NAV <= 0 {
			continue
		}
		p.Date = DateOnly(p.Date)
		cleaned = append(cleaned, p)
	}

	sort.Slice(cleaned, func(i, j int) bool {
		return cleaned[i].Date.Before(cleaned[j].Date)
	})

	return &Series{instrumentID: instrumentID, points: cleaned}
}

// InstrumentID returns the instrument this series belongs to.
func (s *Series) InstrumentID() string { return s.instrumentID }

// Len returns the number of price points.
func (s *Series) Len() int { return len(s.points) }

// Empty reports whether the series holds no usable points.
func (s *Series) Empty() bool { return len(s.points) == 0 }

// First returns the earliest price point.
func (s *Series) First() (entities.PricePoint, bool) {
	if len(s.points) == 0 {
		return entities.PricePoint{}, false
	}
	return s.points[0], true
}

// Last returns the latest price point.
func (s *Series) Last() (entities.PricePoint, bool) {
	if len(s.points) == 0 {
		return entities.PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// At returns the price point on exactly the given date.
func (s *Series) At(date time.Time) (entities.PricePoint, bool) {
	date = DateOnly(date)
	i := sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Date.Before(date)
	})
	if i < len(s.points) && s.points[i].Date.Equal(date) {
		return s.points[i], true
	}
	return entities.PricePoint{}, false
}

// NearestOnOrAfter resolves the first price point with date >= target and
// at most toleranceDays after it. A miss means the date falls in a data
// gap too wide to bridge; it is excluded from analysis, never an error.
func (s *Series) NearestOnOrAfter(target time.Time, toleranceDays int) (entities.PricePoint, bool) {
	target = DateOnly(target)
	i := sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Date.Before(target)
	})
	if i >= len(s.points) {
		return entities.PricePoint{}, false
	}
	if s.points[i].Date.Sub(target) > time.Duration(toleranceDays)*24*time.Hour {
		return entities.PricePoint{}, false
	}
	return s.points[i], true
}

// Dates returns the series' trading dates, ascending.
func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.points))
	for i, p := range s.points {
		dates[i] = p.Date
	}
	return dates
}

// CommonCalendar returns the ascending dates on which every given series
// has a price point. The weighted return factor at a candidate date is
// only defined when all instruments price on it.
func CommonCalendar(series map[string]*Series) []time.Time {
	if len(series) == 0 {
		return nil
	}

	// Intersect starting from the shortest series.
	var base *Series
	for _, s := range series {
		if s.Empty() {
			return nil
		}
		if base == nil || s.Len() < base.Len() {
			base = s
		}
	}

	var calendar []time.Time
	for _, p := range base.points {
		shared := true
		for _, s := range series {
			if s == base {
				continue
			}
			if _, ok := s.At(p.Date); !ok {
				shared = false
				break
			}
		}
		if shared {
			calendar = append(calendar, p.Date)
		}
	}
	return calendar
}

// DateOnly truncates a timestamp to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
