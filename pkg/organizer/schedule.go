package organizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunStatus records the outcome of the most recent scheduled run.
type RunStatus struct {
	JobID    string
	Started  time.Time
	Duration time.Duration
	Changed  int
	Applied  int
	Err      error
}

// ScheduleConfig configures a Scheduler.
type ScheduleConfig struct {
	// Cron is a six-field expression with seconds, e.g. "0 0 3 * * *".
	Cron string

	// AutoApply persists changed suggestions after each run.
	AutoApply bool

	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
}

// Scheduler re-organizes the library on a cron schedule.
//
// Runs never overlap: a tick that fires while the previous run is still
// going is skipped.
type Scheduler struct {
	org    *Organizer
	req    Request
	config ScheduleConfig
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
	busy    bool
	last    *RunStatus
	runs    int

	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that runs req through org.
func NewScheduler(org *Organizer, req Request, config ScheduleConfig) *Scheduler {
	return &Scheduler{
		org:    org,
		req:    req,
		config: config,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start schedules the job and starts the cron loop. A stopped scheduler can
// be started again.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	entry, err := s.cron.AddFunc(s.config.Cron, s.tick)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.config.Cron, err)
	}
	s.entry = entry
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.cron.Start()
	s.running = true
	s.org.logger.Info("scheduler started", "cron", s.config.Cron, "auto_apply", s.config.AutoApply)
	return nil
}

// Stop stops the cron loop, cancels a run in progress and waits up to wait
// for it to return.
func (s *Scheduler) Stop(wait time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cron.Remove(s.entry)
	s.cancel()
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.org.logger.Info("scheduler stopped")
	case <-time.After(wait):
		s.org.logger.Warn("scheduler stop timed out", "wait", wait)
	}
}

// tick is the cron job. It runs under the context of the current Start, so
// Stop cancels it.
func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.RunNow(ctx)
}

// RunNow performs one run immediately. It returns false without running
// when another run is in progress.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.org.logger.Warn("skipping scheduled run, previous run still active")
		return false
	}
	s.busy = true
	s.mu.Unlock()

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	status := &RunStatus{Started: time.Now()}
	report, applied, err := s.org.Run(ctx, s.req, s.config.AutoApply)
	status.Duration = time.Since(status.Started)
	status.Err = err
	status.Applied = applied.Applied
	if report != nil {
		status.JobID = report.JobID
		status.Changed = report.Changed
	}

	s.mu.Lock()
	s.busy = false
	s.last = status
	s.runs++
	s.mu.Unlock()
	return true
}

// LastRun returns a copy of the most recent run status, or nil.
func (s *Scheduler) LastRun() *RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	status := *s.last
	return &status
}

// Runs returns the number of completed runs.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// ValidateCron reports whether expr parses as a six-field cron expression.
func ValidateCron(expr string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}
