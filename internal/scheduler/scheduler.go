// Package scheduler runs the daily report and housekeeping jobs on cron schedules.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// CatchUpJob is a job that may still be due when the process starts after
// its slot has passed
type CatchUpJob interface {
	Job
	Due() bool
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	log  zerolog.Logger

	mu      sync.Mutex
	catchUp []CatchUpJob
	wg      sync.WaitGroup
}

// New creates a scheduler evaluating schedules in loc. A job still running
// when its next tick fires is skipped.
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	l := log.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
		),
		loc: loc,
		log: l,
	}
}

// Start starts the scheduler and fires catch-up jobs that are still due
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Str("timezone", s.loc.String()).Msg("Scheduler started")

	s.mu.Lock()
	due := make([]CatchUpJob, 0, len(s.catchUp))
	for _, job := range s.catchUp {
		if job.Due() {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.log.Info().Str("job", job.Name()).Msg("Slot passed within grace window, catching up")
		s.wg.Add(1)
		go func(j Job) {
			defer s.wg.Done()
			s.runJob(j)
		}(job)
	}
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule (seconds field first)
// Schedule examples:
//   - "0 20 16 * * MON-FRI" - 16:20 on weekdays
//   - "0 30 2 * * *"       - 02:30 daily
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.runJob(job) })
	if err != nil {
		return err
	}

	if c, ok := job.(CatchUpJob); ok {
		s.mu.Lock()
		s.catchUp = append(s.catchUp, c)
		s.mu.Unlock()
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

func (s *Scheduler) runJob(job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Msg("Job completed")
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
