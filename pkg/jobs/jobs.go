// Package jobs runs scheduled background work on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/logger"
	"p9e.in/reasonsform/pkg/notify"
)

// Job is one scheduled task.
type Job interface {
	Name() string
	Schedule() gocron.JobDefinition
	Execute()
}

// Manager owns the scheduler.
type Manager struct {
	scheduler gocron.Scheduler
}

func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Manager{scheduler: s}, nil
}

// Register adds job. A run still in progress when the next one is due is
// rescheduled rather than overlapped.
func (m *Manager) Register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.Schedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	logger.Info("✅ Job scheduler started (%d jobs)", len(m.scheduler.Jobs()))
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("❌ Failed to shutdown scheduler: %v", err)
		return
	}
	logger.Info("Job scheduler stopped")
}

// Counter reports claim volumes for a day.
type Counter interface {
	DailyCounts(ctx context.Context, day time.Time) (map[models.RequestType]int64, int64, error)
}

// SummaryJob sends yesterday's claim counts and the pending backlog.
type SummaryJob struct {
	counts   Counter
	notifier notify.Notifier
	cron     string
	timeout  time.Duration
	now      func() time.Time
}

// NewSummaryJob runs on the 5-field crontab expression cron.
func NewSummaryJob(counts Counter, notifier notify.Notifier, cron string) *SummaryJob {
	return &SummaryJob{
		counts:   counts,
		notifier: notifier,
		cron:     cron,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
}

func (j *SummaryJob) Name() string { return "daily_claims_summary" }

func (j *SummaryJob) Schedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *SummaryJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	day := j.now().AddDate(0, 0, -1)
	created, pending, err := j.counts.DailyCounts(ctx, day)
	if err != nil {
		logger.Error("❌ Daily summary for %s failed: %v", day.Format(models.DateLayout), err)
		return
	}
	j.notifier.Notify(notify.DailySummary(day, created, pending))
	logger.Info("✅ Daily summary for %s queued", day.Format(models.DateLayout))
}
