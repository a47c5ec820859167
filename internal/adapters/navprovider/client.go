package navprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/infrastructure/config"
	apperrors "github.com/basketfolio/folio_service/pkg/errors"
	"github.com/basketfolio/folio_service/pkg/metrics"
	"github.com/basketfolio/folio_service/pkg/retry"
)

// navDateLayout is the provider's day-month-year wire format.
const navDateLayout = "02-01-2006"

// Client fetches historical NAV series over HTTP. Calls go through a
// circuit breaker and the shared retry policy; any terminal failure is
// surfaced as DATA_UNAVAILABLE so the engine degrades the instrument
// instead of failing the basket.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	policy  retry.Policy
	logger  *zap.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "nav-provider",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	policy := retry.ProviderPolicy
	if cfg.MaxRetries > 0 {
		policy = policy.WithMaxAttempts(cfg.MaxRetries)
	}
	if cfg.RetryBackoffMs > 0 {
		policy = policy.WithBaseDelay(time.Duration(cfg.RetryBackoffMs) * time.Millisecond)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		breaker: breaker,
		policy:  policy,
		logger:  logger,
	}
}

type navHistoryResponse struct {
	Meta struct {
		SchemeCode json.Number `json:"scheme_code"`
		SchemeName string      `json:"scheme_name"`
	} `json:"meta"`
	Data []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
	Status string `json:"status"`
}

// GetHistoricalSeries fetches the full NAV history for one instrument.
func (c *Client) GetHistoricalSeries(ctx context.Context, instrumentID string) ([]entities.PricePoint, error) {
	started := time.Now()

	var points []entities.PricePoint
	err := retry.Do(ctx, c.policy, func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, instrumentID)
		})
		if err != nil {
			return err
		}
		points = result.([]entities.PricePoint)
		return nil
	}, func(err error) bool {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return false
		}
		return ctx.Err() == nil
	})

	metrics.ProviderFetchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ProviderFetchesTotal.WithLabelValues("error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.ErrComputeTimeout.Wrap(err).WithDetail("instrument_id", instrumentID)
		}
		return nil, apperrors.ErrDataUnavailable.Wrap(err).WithDetail("instrument_id", instrumentID)
	}

	metrics.ProviderFetchesTotal.WithLabelValues("success").Inc()
	return points, nil
}

func (c *Client) fetch(ctx context.Context, instrumentID string) ([]entities.PricePoint, error) {
	url := fmt.Sprintf("%s/mf/%s", c.baseURL, instrumentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider http %d for instrument %s", resp.StatusCode, instrumentID)
	}

	var raw navHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("provider response decode: %w", err)
	}

	points := make([]entities.PricePoint, 0, len(raw.Data))
	for _, d := range raw.Data {
		date, err := time.Parse(navDateLayout, d.Date)
		if err != nil {
			continue
		}
		nav, err := strconv.ParseFloat(d.NAV, 64)
		if err != nil || nav <= 0 {
			continue
		}
		points = append(points, entities.PricePoint{
			InstrumentID: instrumentID,
			Date:         date.UTC(),
			NAV:          nav,
		})
	}
	return points, nil
}
