package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reconciler is implemented by DocumentService.
type Reconciler interface {
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

// Maintenance runs Reconcile on a cron schedule.
type Maintenance struct {
	target   Reconciler
	schedule string
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewMaintenance(target Reconciler, schedule string, timeout time.Duration, logger zerolog.Logger) *Maintenance {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Maintenance{
		target:   target,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger.With().Str("component", "maintenance").Logger(),
	}
}

// Start registers the job and starts the scheduler. An empty schedule
// disables it.
func (m *Maintenance) Start() error {
	if m.schedule == "" {
		m.logger.Info().Msg("Maintenance disabled")
		return nil
	}

	cl := cronLogger{m.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	if _, err := c.AddFunc(m.schedule, m.run); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", m.schedule, err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	m.logger.Info().Str("schedule", m.schedule).Msg("Maintenance scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish or ctx to
// expire.
func (m *Maintenance) Stop(ctx context.Context) {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		m.logger.Warn().Msg("Maintenance job still running at shutdown")
	}
}

// RunOnce reconciles immediately. Overlapping runs are skipped.
func (m *Maintenance) RunOnce(ctx context.Context) (ReconcileReport, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Debug().Msg("Reconcile already running, skipping")
		return ReconcileReport{}, nil
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	start := time.Now()
	report, err := m.target.Reconcile(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Reconcile failed")
		return report, err
	}

	m.logger.Info().
		Int("reindexed", report.Reindexed).
		Int("missing_files", report.MissingFiles).
		Int("orphans_removed", report.OrphansFound).
		Dur("took", time.Since(start)).
		Msg("Reconcile finished")
	return report, nil
}

func (m *Maintenance) run() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_, _ = m.RunOnce(ctx)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
