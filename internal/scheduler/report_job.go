package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

const reportRunTimeout = 30 * time.Minute

// ReportTrigger starts the scheduled report run
type ReportTrigger interface {
	TriggerScheduled(ctx context.Context) (*domain.ReportRun, error)
}

// ReportJob fires the daily report on weekdays at a fixed local time. A tick
// that executes later than the grace window after its slot is skipped.
type ReportJob struct {
	trigger ReportTrigger
	hour    int
	minute  int
	grace   time.Duration
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
}

// NewReportJob creates the daily report job
func NewReportJob(trigger ReportTrigger, hour, minute int, grace time.Duration, loc *time.Location, log zerolog.Logger) *ReportJob {
	if loc == nil {
		loc = time.Local
	}
	return &ReportJob{
		trigger: trigger,
		hour:    hour,
		minute:  minute,
		grace:   grace,
		loc:     loc,
		now:     time.Now,
		log:     log.With().Str("job", "daily_report").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *ReportJob) Name() string {
	return "daily_report"
}

// Schedule returns the cron spec: the run time on weekdays
func (j *ReportJob) Schedule() string {
	return fmt.Sprintf("0 %d %d * * MON-FRI", j.minute, j.hour)
}

func (j *ReportJob) slot(now time.Time) time.Time {
	local := now.In(j.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), j.hour, j.minute, 0, 0, j.loc)
}

// Due reports whether now is a weekday within [slot, slot+grace]
func (j *ReportJob) Due() bool {
	now := j.now().In(j.loc)
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	slot := j.slot(now)
	return !now.Before(slot) && now.Sub(slot) <= j.grace
}

// Run triggers the scheduled report when the slot is due. Gate rejections
// and overlapping runs are logged, not returned.
func (j *ReportJob) Run() error {
	now := j.now()
	if !j.Due() {
		j.log.Warn().
			Time("slot", j.slot(now)).
			Dur("grace", j.grace).
			Msg("Tick outside grace window, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), reportRunTimeout)
	defer cancel()

	run, err := j.trigger.TriggerScheduled(ctx)
	switch {
	case domain.IsGateRejection(err):
		j.log.Warn().Str("reason", err.Error()).Msg("Scheduled report skipped")
		return nil
	case errors.Is(err, domain.ErrRunInProgress):
		j.log.Warn().Msg("Previous report run still in progress")
		return nil
	case err != nil:
		return err
	}

	j.log.Info().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("Scheduled report finished")
	return nil
}
