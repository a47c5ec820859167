package recalc_scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/basketfolio/folio_service/internal/domain/entities"
	"github.com/basketfolio/folio_service/internal/domain/repositories"
	"github.com/basketfolio/folio_service/pkg/metrics"
)

// SnapshotManager is the per-basket recompute entry point the scheduler
// drives.
type SnapshotManager interface {
	Recompute(ctx context.Context, basketID uuid.UUID) (*entities.PerformanceSnapshot, error)
}

// Config holds scheduler configuration.
type Config struct {
	// Schedule is the cron expression for the daily run.
	Schedule string `json:"schedule"`
	// InterBasketDelay is the pause between consecutive baskets. Sequential
	// processing with a delay bounds load on the upstream price provider.
	InterBasketDelay time.Duration `json:"inter_basket_delay"`
	// StartupDelay staggers the warm-up pass after boot so a freshly
	// started instance does not serve stale data for long.
	StartupDelay time.Duration `json:"startup_delay"`
	// StartupPassEnabled toggles the warm-up pass.
	StartupPassEnabled bool `json:"startup_pass_enabled"`
	// RunTimeout bounds one full pass over all baskets.
	RunTimeout time.Duration `json:"run_timeout"`
	// Timezone for the cron schedule.
	Timezone string `json:"timezone"`
}

// DefaultConfig returns the default configuration: daily at 02:30 UTC,
// one second between baskets.
func DefaultConfig() Config {
	return Config{
		Schedule:           "30 2 * * *",
		InterBasketDelay:   time.Second,
		StartupDelay:       2 * time.Minute,
		StartupPassEnabled: true,
		RunTimeout:         2 * time.Hour,
		Timezone:           "UTC",
	}
}

// Scheduler drives the daily recomputation of every active basket.
// Baskets are fully independent units of work: each failure is captured
// into the run summary and never aborts the remaining run. Reruns are
// idempotent because the underlying snapshot write is a same-day replace.
type Scheduler struct {
	cron    *cron.Cron
	manager SnapshotManager
	baskets repositories.BasketRepository
	config  Config
	logger  *zap.Logger
	tracer  trace.Tracer

	mu          sync.RWMutex
	running     bool
	runActive   bool
	lastRun     time.Time
	lastSummary *entities.RunSummary
	stopStartup chan struct{}
}

// zapCronLogger adapts zap to cron's printf-style logger.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Printf(format string, args ...interface{}) {
	l.logger.Sugar().Infof(format, args...)
}

// NewScheduler creates a recalculation scheduler.
func NewScheduler(manager SnapshotManager, baskets repositories.BasketRepository, config Config, logger *zap.Logger) (*Scheduler, error) {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", config.Timezone, err)
	}

	c := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cron.VerbosePrintfLogger(&zapCronLogger{logger: logger})),
	)

	return &Scheduler{
		cron:        c,
		manager:     manager,
		baskets:     baskets,
		config:      config,
		logger:      logger,
		tracer:      otel.Tracer("recalc-scheduler"),
		stopStartup: make(chan struct{}),
	}, nil
}

// Start registers the daily job and, when enabled, kicks off the staggered
// startup pass.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.executeRun("scheduled")
	}); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	if s.config.StartupPassEnabled {
		go s.startupPass()
	}

	s.logger.Info("recalculation scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Duration("inter_basket_delay", s.config.InterBasketDelay),
		zap.Bool("startup_pass", s.config.StartupPassEnabled),
	)
	return nil
}

// Stop halts the cron loop and the pending startup pass.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}

	close(s.stopStartup)

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}

	s.running = false
	s.logger.Info("recalculation scheduler stopped")
	return nil
}

// TriggerManualRun starts an immediate pass without blocking the caller.
func (s *Scheduler) TriggerManualRun() error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return fmt.Errorf("scheduler is not running")
	}

	go s.executeRun("manual")
	return nil
}

// RunAll performs one synchronous pass over all active baskets and
// returns the summary.
func (s *Scheduler) RunAll(ctx context.Context) *entities.RunSummary {
	return s.run(ctx, "manual")
}

// startupPass waits out the stagger delay, then warms today's snapshots.
func (s *Scheduler) startupPass() {
	select {
	case <-s.stopStartup:
		return
	case <-time.After(s.config.StartupDelay):
	}
	s.executeRun("startup")
}

func (s *Scheduler) executeRun(trigger string) {
	ctx := context.Background()
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}
	s.run(ctx, trigger)
}

// run recomputes every active basket sequentially. One basket at a time
// with a deliberate delay between baskets keeps the shared upstream price
// source within its rate limits; wall-clock time is traded for provider
// safety.
func (s *Scheduler) run(ctx context.Context, trigger string) *entities.RunSummary {
	s.mu.Lock()
	if s.runActive {
		s.mu.Unlock()
		s.logger.Info("recalculation run already in progress, skipping", zap.String("trigger", trigger))
		return nil
	}
	s.runActive = true
	s.lastRun = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runActive = false
		s.mu.Unlock()
	}()

	ctx, span := s.tracer.Start(ctx, "scheduler.recalculate_all", trace.WithAttributes(
		attribute.String("trigger", trigger),
	))
	defer span.End()

	summary := &entities.RunSummary{StartedAt: time.Now()}

	baskets, err := s.baskets.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active baskets", zap.Error(err))
		span.RecordError(err)
		metrics.SchedulerRunsTotal.WithLabelValues("error").Inc()
		summary.FinishedAt = time.Now()
		s.recordSummary(summary)
		return summary
	}

	summary.Total = len(baskets)
	metrics.ActiveBasketsGauge.Set(float64(len(baskets)))

	s.logger.Info("recalculation run starting",
		zap.String("trigger", trigger),
		zap.Int("baskets", len(baskets)),
	)

	for i, basket := range baskets {
		if i > 0 && s.config.InterBasketDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.config.InterBasketDelay):
			}
		}
		if ctx.Err() != nil {
			reason := fmt.Sprintf("run aborted: %v", ctx.Err())
			for _, remaining := range baskets[i:] {
				summary.Failed++
				summary.Errors = append(summary.Errors, entities.RunError{
					BasketID:   remaining.ID,
					BasketName: remaining.Name,
					Reason:     reason,
					OccurredAt: time.Now(),
				})
			}
			break
		}

		if _, err := s.manager.Recompute(ctx, basket.ID); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, entities.RunError{
				BasketID:   basket.ID,
				BasketName: basket.Name,
				Reason:     err.Error(),
				OccurredAt: time.Now(),
			})
			metrics.SchedulerBasketFailures.Inc()
			s.logger.Error("basket recompute failed",
				zap.String("basket_id", basket.ID.String()),
				zap.String("basket_name", basket.Name),
				zap.Error(err),
			)
			continue
		}
		summary.Successful++
	}

	summary.FinishedAt = time.Now()
	s.recordSummary(summary)

	status := "success"
	if summary.Failed > 0 {
		status = "partial"
	}
	metrics.SchedulerRunsTotal.WithLabelValues(status).Inc()
	metrics.SchedulerLastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))

	s.logger.Info("recalculation run finished",
		zap.String("trigger", trigger),
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary
}

func (s *Scheduler) recordSummary(summary *entities.RunSummary) {
	s.mu.Lock()
	s.lastSummary = summary
	s.mu.Unlock()
}

// Status describes the scheduler for the admin endpoint.
type Status struct {
	Running     bool                 `json:"running"`
	Schedule    string               `json:"schedule"`
	Timezone    string               `json:"timezone"`
	LastRun     time.Time            `json:"last_run"`
	NextRun     time.Time            `json:"next_run"`
	LastSummary *entities.RunSummary `json:"last_summary,omitempty"`
}

// GetStatus returns the scheduler's current state and last run summary.
func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next time.Time
	if entries := s.cron.Entries(); len(entries) > 0 {
		next = entries[0].Next
	}

	return Status{
		Running:     s.running,
		Schedule:    s.config.Schedule,
		Timezone:    s.config.Timezone,
		LastRun:     s.lastRun,
		NextRun:     next,
		LastSummary: s.lastSummary,
	}
}
