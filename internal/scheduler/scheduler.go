package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler keeps recurring jobs keyed by a caller-chosen id.
// Registering an existing id replaces the previous job.
type Scheduler struct {
	cron   *cron.Cron
	mu     sync.Mutex
	jobs   map[string]cron.EntryID
	logger *zerolog.Logger
}

func New(loc *time.Location, logger *zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: &l}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   make(map[string]cron.EntryID),
		logger: &l,
	}
}

// Register adds or replaces the job under jobID.
func (s *Scheduler) Register(jobID string, schedule cron.Schedule, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[jobID]; ok {
		s.cron.Remove(id)
	}
	s.jobs[jobID] = s.cron.Schedule(schedule, cron.FuncJob(job))

	ev := s.logger.Debug().Str("job", jobID)
	if d, ok := schedule.(interface{ Spec() string }); ok {
		ev = ev.Str("schedule", d.Spec())
	}
	ev.Msg("job registered")
	return nil
}

// RegisterSpec parses a standard cron spec ("0 3 * * *", "@daily") and registers the job.
func (s *Scheduler) RegisterSpec(jobID, spec string, job func()) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}
	return s.Register(jobID, schedule, job)
}

// Remove deletes the job. It reports whether the job existed.
func (s *Scheduler) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.jobs, jobID)
	s.logger.Debug().Str("job", jobID).Msg("job removed")
	return true
}

func (s *Scheduler) Has(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// NextRun returns the next activation of the job, zero if unknown or not started.
func (s *Scheduler) NextRun(jobID string) time.Time {
	s.mu.Lock()
	id, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", s.Len()).Msg("scheduler started")
}

// Stop stops scheduling and waits for running jobs or ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
