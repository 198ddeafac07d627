package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/config"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/pkg/logger"
)

var kst = time.FixedZone("KST", 9*60*60)

type fakeTrigger struct {
	calls atomic.Int32
	err   error
	done  chan struct{}
}

func (f *fakeTrigger) TriggerScheduled(ctx context.Context) (*domain.ReportRun, error) {
	f.calls.Add(1)
	if f.done != nil {
		defer close(f.done)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ReportRun{ID: "run-1", Status: domain.RunStatusCompleted}, nil
}

// gatedTrigger applies the session close gate the way the orchestrator does
type gatedTrigger struct {
	cal  *calendar.TradingCalendar
	now  time.Time
	runs []*domain.ReportRun
	errs []error
}

func (g *gatedTrigger) TriggerScheduled(ctx context.Context) (*domain.ReportRun, error) {
	if !g.cal.CanGenerateTodayReport(g.now) {
		err := &domain.GateRejection{Date: calendar.ISODate(g.now), Reason: "market session not closed yet"}
		g.errs = append(g.errs, err)
		return nil, err
	}
	run := &domain.ReportRun{ID: "run-1", Status: domain.RunStatusCompleted}
	g.runs = append(g.runs, run)
	return run, nil
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func newJobAt(trigger ReportTrigger, now time.Time) *ReportJob {
	job := NewReportJob(trigger, 16, 20, 5*time.Minute, kst, logger.Nop())
	job.now = func() time.Time { return now }
	return job
}

func TestReportJob_Schedule(t *testing.T) {
	job := NewReportJob(&fakeTrigger{}, 16, 5, time.Minute, kst, logger.Nop())
	assert.Equal(t, "0 5 16 * * MON-FRI", job.Schedule())
	assert.Equal(t, "daily_report", job.Name())
}

func TestReportJob_Due(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly at slot", time.Date(2024, 6, 7, 16, 20, 0, 0, kst), true},
		{"inside grace", time.Date(2024, 6, 7, 16, 24, 59, 0, kst), true},
		{"grace boundary", time.Date(2024, 6, 7, 16, 25, 0, 0, kst), true},
		{"after grace", time.Date(2024, 6, 7, 16, 25, 1, 0, kst), false},
		{"before slot", time.Date(2024, 6, 7, 16, 19, 0, 0, kst), false},
		{"saturday", time.Date(2024, 6, 8, 16, 21, 0, 0, kst), false},
		{"utc clock converted", time.Date(2024, 6, 7, 7, 22, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newJobAt(&fakeTrigger{}, tt.now)
			assert.Equal(t, tt.want, job.Due())
		})
	}
}

func TestReportJob_Run(t *testing.T) {
	t.Run("due tick triggers", func(t *testing.T) {
		trigger := &fakeTrigger{}
		job := newJobAt(trigger, time.Date(2024, 6, 7, 16, 20, 1, 0, kst))
		require.NoError(t, job.Run())
		assert.Equal(t, int32(1), trigger.calls.Load())
	})

	t.Run("late tick skipped", func(t *testing.T) {
		trigger := &fakeTrigger{}
		job := newJobAt(trigger, time.Date(2024, 6, 7, 17, 30, 0, 0, kst))
		require.NoError(t, job.Run())
		assert.Zero(t, trigger.calls.Load())
	})

	t.Run("gate rejection swallowed", func(t *testing.T) {
		trigger := &fakeTrigger{err: &domain.GateRejection{Date: "2024-06-06", Reason: "not a trading day (현충일)"}}
		job := newJobAt(trigger, time.Date(2024, 6, 6, 16, 20, 1, 0, kst))
		assert.NoError(t, job.Run())
		assert.Equal(t, int32(1), trigger.calls.Load())
	})

	t.Run("run in progress swallowed", func(t *testing.T) {
		trigger := &fakeTrigger{err: domain.ErrRunInProgress}
		job := newJobAt(trigger, time.Date(2024, 6, 7, 16, 20, 1, 0, kst))
		assert.NoError(t, job.Run())
	})

	t.Run("pipeline failure returned", func(t *testing.T) {
		boom := errors.New("collect step failed")
		trigger := &fakeTrigger{err: boom}
		job := newJobAt(trigger, time.Date(2024, 6, 7, 16, 20, 1, 0, kst))
		assert.ErrorIs(t, job.Run(), boom)
	})
}

func TestReportJob_DefaultScheduleClearsCloseGate(t *testing.T) {
	t.Setenv("REPORT_DATA_DIR", t.TempDir())
	t.Setenv("REPORT_OUTPUT_DIR", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	hour, minute, err := config.ParseRunTime(cfg.Schedule.RunTime)
	require.NoError(t, err)

	cal := calendar.New(calendar.WithLocation(kst))
	for _, offset := range []time.Duration{0, cfg.Schedule.GraceWindow} {
		tick := time.Date(2024, 6, 7, hour, minute, 0, 0, kst).Add(offset)
		trigger := &gatedTrigger{cal: cal, now: tick}
		job := NewReportJob(trigger, hour, minute, cfg.Schedule.GraceWindow, kst, logger.Nop())
		job.now = func() time.Time { return tick }

		require.True(t, job.Due(), "tick %s", tick.Format("15:04:05"))
		require.NoError(t, job.Run())

		assert.Empty(t, trigger.errs, "tick %s must clear the close gate", tick.Format("15:04:05"))
		require.Len(t, trigger.runs, 1)
		assert.Equal(t, domain.RunStatusCompleted, trigger.runs[0].Status)
	}
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(kst, logger.Nop())

	assert.NoError(t, s.AddJob("0 20 16 * * MON-FRI", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(kst, logger.Nop())

	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())

	failing := &countingJob{err: errors.New("boom")}
	assert.Error(t, s.RunNow(failing))
}

func TestScheduler_StartCatchesUpDueJob(t *testing.T) {
	s := New(kst, logger.Nop())

	trigger := &fakeTrigger{done: make(chan struct{})}
	job := newJobAt(trigger, time.Date(2024, 6, 7, 16, 23, 0, 0, kst))
	require.NoError(t, s.AddJob(job.Schedule(), job))

	s.Start()
	select {
	case <-trigger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("catch-up run did not fire")
	}
	s.Stop()

	assert.Equal(t, int32(1), trigger.calls.Load())
}

func TestScheduler_StartSkipsStaleSlot(t *testing.T) {
	s := New(kst, logger.Nop())

	trigger := &fakeTrigger{}
	job := newJobAt(trigger, time.Date(2024, 6, 7, 18, 0, 0, 0, kst))
	require.NoError(t, s.AddJob(job.Schedule(), job))

	s.Start()
	s.Stop()

	assert.Zero(t, trigger.calls.Load())
}
