package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bizadmin/internal/logging"
)

// BackupRunner is what the scheduler triggers on every tick
type BackupRunner interface {
	CreateBackup(ctx context.Context, opts BackupOptions) (*Artifact, error)
}

// Scheduler runs automatic backups at a fixed interval. Start replaces any
// running schedule, so there is at most one cron at a time.
type Scheduler struct {
	runner  BackupRunner
	logger  *logging.Logger
	metrics *Metrics

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	lastRun  *time.Time
	lastErr  string
}

// NewScheduler creates a stopped scheduler
func NewScheduler(runner BackupRunner, logger *logging.Logger, metrics *Metrics) *Scheduler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scheduler{runner: runner, logger: logger, metrics: metrics}
}

// Start schedules a backup with default options every interval, stopping the
// previous schedule first
func (s *Scheduler) Start(interval time.Duration) error {
	if interval < time.Second {
		return NewValidationError("scheduler interval must be at least one second", nil).
			WithContext("interval", interval.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	s.entryID = c.Schedule(cron.Every(interval), cron.FuncJob(s.tick))
	s.cron = c
	s.interval = interval
	c.Start()

	s.logger.WithField("interval", interval.String()).Info("Auto backup scheduler started")
	return nil
}

// Stop halts the schedule. Calling it on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	s.stopLocked()
	s.logger.Info("Auto backup scheduler stopped")
}

func (s *Scheduler) stopLocked() {
	if s.cron == nil {
		return
	}
	// Running ticks are not awaited: tick takes mu.
	s.cron.Stop()
	s.cron = nil
	s.entryID = 0
	s.interval = 0
}

// IsRunning reports whether a schedule is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Interval returns the active interval, zero when stopped
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NextRun returns the time of the next tick, nil when stopped
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() SchedulerStatus {
	next := s.NextRun()

	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Running:  s.cron != nil,
		Interval: s.interval,
		NextRun:  next,
		LastRun:  s.lastRun,
		LastErr:  s.lastErr,
	}
}

func (s *Scheduler) tick() {
	started := time.Now()
	done := s.logger.LogOperationStart("scheduled_backup", map[string]interface{}{
		"interval": s.Interval().String(),
	})

	err := s.run()
	s.metrics.RecordSchedulerTick(err)

	s.mu.Lock()
	s.lastRun = &started
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	done(err)
}

// run turns a panic inside the runner into a failed tick
func (s *Scheduler) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled backup panicked: %v", r)
		}
	}()
	_, err = s.runner.CreateBackup(context.Background(), DefaultBackupOptions())
	return err
}

// cronLogger routes cron's own messages through the application logger
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(cronFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cronFields(keysAndValues)
	fields["error"] = err.Error()
	l.logger.WithFields(fields).Error("cron: " + msg)
}

func cronFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
