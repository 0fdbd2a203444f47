package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"devagents/internal/domain"
)

// Pruner removes stored chat contexts older than maxAge.
type Pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Maintenance runs periodic housekeeping: refreshing the git repository
// and pruning stale chat contexts. Both tasks are optional; a nil client
// skips the task.
type Maintenance struct {
	git      domain.GitClient
	pruner   Pruner
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewMaintenance builds the scheduler. schedule accepts cron specs and
// the @every form.
func NewMaintenance(git domain.GitClient, pruner Pruner, maxAge time.Duration, schedule string, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		git:      git,
		pruner:   pruner,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (m *Maintenance) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, m.runOnce); err != nil {
		return domain.NewDomainError("maintenance.Start", domain.ErrConfigInvalid,
			"invalid maintenance schedule "+m.schedule)
	}
	c.Start()
	m.cron = c
	m.logger.Info("maintenance scheduler started", "schedule", m.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.logger.Info("maintenance scheduler stopped")
}

func (m *Maintenance) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	m.RunTasks(ctx)
}

// RunTasks executes one maintenance cycle. Task failures are logged and
// do not stop the remaining tasks.
func (m *Maintenance) RunTasks(ctx context.Context) {
	if m.git != nil {
		if err := m.git.Refresh(ctx); err != nil {
			m.logger.Warn("repository refresh failed", "error", err)
		}
	}
	if m.pruner != nil && m.maxAge > 0 {
		removed, err := m.pruner.Prune(ctx, m.maxAge)
		if err != nil {
			m.logger.Warn("context prune failed", "error", err)
		} else if removed > 0 {
			m.logger.Info("maintenance pruned contexts", "removed", removed)
		}
	}
}
