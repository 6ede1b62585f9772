package taskqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"himawari-desktop/internal/apperr"
)

// DefaultMaxHistory is how many run records are kept on disk
const DefaultMaxHistory = 200

// Executor runs one pipeline pass (implemented by App)
type Executor interface {
	ExecuteRun(ctx context.Context) (*RunOutcome, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context) (*RunOutcome, error)

func (f ExecutorFunc) ExecuteRun(ctx context.Context) (*RunOutcome, error) {
	return f(ctx)
}

// Scheduler runs the pipeline on a cron schedule and records every run
type Scheduler struct {
	cron       *cron.Cron
	executor   Executor
	historyDir string
	maxHistory int
	logger     *slog.Logger

	// Serializes runs; a scheduled run that finds one in progress is skipped
	runMu sync.Mutex

	mu            sync.Mutex
	entryID       cron.EntryID
	onRunComplete func(*RunRecord)
}

// NewScheduler creates a scheduler that stores its run history in historyDir
func NewScheduler(historyDir string, executor Executor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		executor:   executor,
		historyDir: historyDir,
		maxHistory: DefaultMaxHistory,
		logger:     logger,
	}
}

// SetOnRunComplete sets the callback invoked after every recorded run
func (s *Scheduler) SetOnRunComplete(callback func(*RunRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRunComplete = callback
}

// SetMaxHistory sets how many records are kept; values below 1 keep everything
func (s *Scheduler) SetMaxHistory(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxHistory = n
}

// ValidateSchedule checks a standard five-field cron spec or descriptor such as "@every 10m"
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return apperr.Wrap(apperr.KindConfig, fmt.Sprintf("invalid schedule %q", spec), err)
	}
	return nil
}

// Schedule registers the pipeline under spec. Scheduled runs use ctx.
func (s *Scheduler) Schedule(ctx context.Context, spec string) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}

	id, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunNow(ctx, TriggerSchedule); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, "error scheduling cron job", err)
	}

	s.mu.Lock()
	s.entryID = id
	s.mu.Unlock()
	return nil
}

// Next returns the time of the next scheduled run, or zero if nothing is scheduled
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}

	entry := s.cron.Entry(id)
	if !entry.Next.IsZero() {
		return entry.Next
	}
	// Not started yet
	if entry.Schedule != nil {
		return entry.Schedule.Next(time.Now())
	}
	return time.Time{}
}

// Run schedules the pipeline, optionally runs it once immediately, and blocks
// until ctx is done. An in-flight run is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context, spec string, runImmediately bool) error {
	if err := s.Schedule(ctx, spec); err != nil {
		return err
	}

	if runImmediately {
		if _, err := s.RunNow(ctx, TriggerInitial); err != nil {
			s.logger.Error("initial run failed", "error", err)
		}
	}

	s.cron.Start()
	s.logger.Info("watching for new images", "schedule", spec, "next", s.Next().Format(time.RFC3339))

	<-ctx.Done()
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// RunNow executes one run, records it in the history and returns the record.
// The returned error is the executor's error; the record is still returned.
func (s *Scheduler) RunNow(ctx context.Context, trigger Trigger) (*RunRecord, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	record := NewRunRecord(trigger)
	s.logger.Info("run started", "run_id", record.ID, "trigger", string(trigger))

	outcome, err := s.executor.ExecuteRun(ctx)
	if err != nil {
		record.MarkFailed(err)
	} else {
		record.MarkCompleted(outcome)
	}

	s.logger.Info("run finished",
		"run_id", record.ID,
		"status", string(record.Status),
		"duration", record.Duration().Round(time.Millisecond))

	if saveErr := record.SaveToFile(s.historyDir); saveErr != nil {
		s.logger.Warn("failed to save run record", "error", saveErr)
	}
	s.pruneHistory()

	s.mu.Lock()
	callback := s.onRunComplete
	s.mu.Unlock()
	if callback != nil {
		callback(record)
	}

	return record, err
}

// History returns up to limit records, newest first. limit <= 0 returns all.
func (s *Scheduler) History(limit int) ([]*RunRecord, error) {
	records, err := LoadHistory(s.historyDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// pruneHistory deletes the oldest records beyond maxHistory
func (s *Scheduler) pruneHistory() {
	s.mu.Lock()
	keep := s.maxHistory
	s.mu.Unlock()
	if keep < 1 {
		return
	}

	records, err := LoadHistory(s.historyDir)
	if err != nil || len(records) <= keep {
		return
	}
	for _, r := range records[keep:] {
		if err := r.DeleteFile(s.historyDir); err != nil {
			s.logger.Debug("failed to prune run record", "run_id", r.ID, "error", err)
		}
	}
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
