package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/monitoring"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/pkg/logger"
	"github.com/studhelper/studhelper/pkg/metrics"
)

// Job names as they appear in metrics and the maintenance health probe.
const (
	JobEntityTotals   = "entity_totals"
	JobSessionCleanup = "dialog_session_cleanup"
)

const (
	defaultTotalsSpec       = "@every 5m"
	defaultCleanupSpec      = "@daily"
	defaultSessionRetention = 30 * 24 * time.Hour
)

// Cleaner runs the periodic jobs: refreshing the entity gauges and purging abandoned dialog sessions.
type Cleaner struct {
	db        *gorm.DB
	dashboard *services.DashboardService
	tracker   *monitoring.JobTracker
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	totalsSchedule  string
	cleanupSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTracker records job outcomes for the maintenance health probe.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithSessionRetention sets how long an untouched dialog session survives.
func WithSessionRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithTotalsSchedule overrides the cron specification for the gauge refresh.
func WithTotalsSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.totalsSchedule = spec
		}
	}
}

// WithCleanupSchedule overrides the cron specification for session cleanup.
func WithCleanupSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cleanupSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dashboard skips the gauge refresh and a nil db skips session cleanup.
func NewCleaner(db *gorm.DB, dashboard *services.DashboardService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:              db,
		dashboard:       dashboard,
		now:             time.Now,
		retention:       defaultSessionRetention,
		totalsSchedule:  defaultTotalsSpec,
		cleanupSchedule: defaultCleanupSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	if cleaner.dashboard != nil {
		cleaner.tracker.Register(JobEntityTotals)
	}
	if cleaner.db != nil {
		cleaner.tracker.Register(JobSessionCleanup)
	}

	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.dashboard == nil && c.db == nil {
		return nil
	}

	if c.dashboard != nil {
		if _, err := c.cron.AddFunc(c.totalsSchedule, func() {
			if err := c.refreshTotals(context.Background()); err != nil {
				c.log.Warn("entity totals refresh failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobEntityTotals, err)
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.cleanupSchedule, func() {
			if err := c.cleanupSessions(context.Background()); err != nil {
				c.log.Warn("dialog session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", JobSessionCleanup, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler; the returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used at startup and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.dashboard != nil {
		errs = multierr.Append(errs, c.refreshTotals(ctx))
	}
	if c.db != nil {
		errs = multierr.Append(errs, c.cleanupSessions(ctx))
	}
	return errs
}

func (c *Cleaner) refreshTotals(ctx context.Context) error {
	start := time.Now()
	err := RefreshEntityTotals(ctx, c.dashboard)
	c.tracker.Record(JobEntityTotals, time.Since(start), err)
	return err
}

func (c *Cleaner) cleanupSessions(ctx context.Context) error {
	start := time.Now()
	removed, err := CleanupDialogSessions(ctx, c.db, c.now().Add(-c.retention))
	c.tracker.Record(JobSessionCleanup, time.Since(start), err)
	if err == nil && removed > 0 {
		c.log.Info("removed abandoned dialog sessions", zap.Int64("count", removed))
	}
	return err
}

// RefreshEntityTotals publishes the row counts of the domain tables as gauges.
func RefreshEntityTotals(ctx context.Context, dashboard *services.DashboardService) error {
	if dashboard == nil {
		return errors.New("refresh totals: dashboard service is required")
	}
	counts, err := dashboard.Counts(ctx)
	if err != nil {
		return fmt.Errorf("refresh totals: %w", err)
	}
	metrics.EntityTotals.WithLabelValues("students").Set(float64(counts.Students))
	metrics.EntityTotals.WithLabelValues("teams").Set(float64(counts.Teams))
	metrics.EntityTotals.WithLabelValues("reports").Set(float64(counts.Reports))
	metrics.EntityTotals.WithLabelValues("ratings").Set(float64(counts.Ratings))
	return nil
}

// CleanupDialogSessions removes dialog sessions untouched since cutoff and reports how many went.
func CleanupDialogSessions(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup sessions: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.DialogSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
