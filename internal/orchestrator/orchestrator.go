// Package orchestrator sequences one report run per trading day: gating,
// collection, analysis, rendering, backup and notification.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Thetason/korean-stock-daily-report/internal/analysis"
	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/collector"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/events"
	"github.com/Thetason/korean-stock-daily-report/internal/notify"
	"github.com/Thetason/korean-stock-daily-report/internal/report"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

const (
	module  = "orchestrator"
	maxRuns = 50
)

// Options modify a single trigger
type Options struct {
	Force   bool // regenerate a date that already has a backup
	Trigger domain.TriggerKind
}

// Deps are the collaborators of the orchestrator. Notifier and Events may be nil.
type Deps struct {
	Calendar  *calendar.TradingCalendar
	Collector Collector
	Analyzer  Analyzer
	Renderer  Renderer
	Backups   BackupStore
	Notifier  Notifier
	Events    *events.Manager
}

// Orchestrator runs the report pipeline. At most one run executes at a time.
type Orchestrator struct {
	deps Deps

	mu      sync.Mutex
	running bool

	runsMu sync.RWMutex
	runs   []*domain.ReportRun // oldest first, at most maxRuns

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// New creates an orchestrator
func New(deps Deps, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		now:   time.Now,
		newID: uuid.NewString,
		log:   log.With().Str("component", module).Logger(),
	}
}

// TriggerScheduled runs the report for today
func (o *Orchestrator) TriggerScheduled(ctx context.Context) (*domain.ReportRun, error) {
	return o.TriggerForDate(ctx, o.now(), Options{Trigger: domain.TriggerScheduled})
}

// TriggerManual runs the report for date, or today when date is nil
func (o *Orchestrator) TriggerManual(ctx context.Context, date *time.Time, force bool) (*domain.ReportRun, error) {
	target := o.now()
	if date != nil {
		target = *date
	}
	return o.TriggerForDate(ctx, target, Options{Force: force, Trigger: domain.TriggerManual})
}

// Running reports whether a run is executing
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Check applies the trigger gates for date without starting a run
func (o *Orchestrator) Check(date time.Time, opts Options) error {
	if err := o.gate(o.localDay(date), opts); err != nil {
		return err
	}
	if o.Running() {
		return domain.ErrRunInProgress
	}
	return nil
}

// TriggerForDate gates date and, when allowed, executes the full pipeline.
// A refused trigger returns *domain.GateRejection and creates no run. Any
// step failure marks the run failed and is returned.
func (o *Orchestrator) TriggerForDate(ctx context.Context, date time.Time, opts Options) (*domain.ReportRun, error) {
	if opts.Trigger == "" {
		opts.Trigger = domain.TriggerManual
	}
	day := o.localDay(date)

	if err := o.gate(day, opts); err != nil {
		return nil, err
	}
	if !o.acquire() {
		o.log.Warn().Str("date", calendar.ISODate(day)).Msg("Trigger ignored, a run is already in progress")
		return nil, domain.ErrRunInProgress
	}
	defer o.release()

	// a run for the same date may have completed while we waited
	if err := o.checkDuplicate(day, opts); err != nil {
		return nil, err
	}

	if opts.Force {
		if err := o.deps.Collector.Invalidate(day); err != nil {
			o.log.Warn().Err(err).Msg("Failed to drop cached snapshot")
		}
	}

	return o.execute(ctx, day, opts)
}

func (o *Orchestrator) localDay(t time.Time) time.Time {
	local := t.In(o.deps.Calendar.Location())
	return o.deps.Calendar.Date(local.Year(), local.Month(), local.Day())
}

func (o *Orchestrator) gate(day time.Time, opts Options) error {
	now := o.now()
	cal := o.deps.Calendar

	switch {
	case !cal.IsTradingDay(day):
		reason := "not a trading day"
		if name := calendar.HolidayName(day); name != "" {
			reason += " (" + name + ")"
		}
		return o.reject(day, reason)
	case day.After(now):
		return o.reject(day, "date is in the future")
	case cal.SameDay(day, now) && !cal.CanGenerateTodayReport(now):
		return o.reject(day, "market session not closed yet")
	}
	return o.checkDuplicate(day, opts)
}

func (o *Orchestrator) checkDuplicate(day time.Time, opts Options) error {
	if opts.Force || !o.deps.Backups.Exists(day) {
		return nil
	}
	return o.reject(day, "report already completed (use force to regenerate)")
}

func (o *Orchestrator) reject(day time.Time, reason string) error {
	iso := calendar.ISODate(day)
	o.log.Info().Str("date", iso).Str("reason", reason).Msg("Report trigger rejected")
	o.emit(&events.RunRejectedData{Date: iso, Reason: reason})
	return &domain.GateRejection{Date: iso, Reason: reason}
}

func (o *Orchestrator) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) execute(ctx context.Context, day time.Time, opts Options) (*domain.ReportRun, error) {
	iso := calendar.ISODate(day)
	run := &domain.ReportRun{
		ID:         o.newID(),
		TargetDate: iso,
		Trigger:    opts.Trigger,
		Status:     domain.RunStatusPending,
		StartedAt:  o.now(),
	}
	o.record(run)

	log := o.log.With().Str("run_id", run.ID).Str("date", iso).Logger()
	log.Info().Str("trigger", string(opts.Trigger)).Bool("force", opts.Force).Msg("Report run started")
	o.emit(&events.RunStartedData{RunID: run.ID, Date: iso, Trigger: string(opts.Trigger), Force: opts.Force})

	// collect
	o.advance(run, domain.RunStatusCollecting)
	timer := utils.NewTimer("collect", log)
	coll, err := o.deps.Collector.Collect(ctx, day)
	timer.Stop()
	if err != nil {
		return o.fail(run, "collect", err)
	}

	// analyze
	o.advance(run, domain.RunStatusAnalyzing)
	timer = utils.NewTimer("analyze", log)
	res, err := o.analyze(day, coll)
	timer.Stop()
	if err != nil {
		return o.fail(run, "analyze", err)
	}

	// render
	o.advance(run, domain.RunStatusRendering)
	timer = utils.NewTimer("render", log)
	out, err := o.deps.Renderer.Render(ctx, res)
	timer.Stop()
	if err != nil {
		return o.fail(run, "render", err)
	}

	// persist, then publish; a failed backup leaves the previous report in place
	backupPath, err := o.deps.Backups.Save(ctx, res)
	if err != nil {
		o.deps.Renderer.Discard(out)
		return o.fail(run, "persist", err)
	}
	out, err = o.deps.Renderer.Commit(out)
	if err != nil {
		return o.fail(run, "publish", err)
	}

	finished := o.now()
	o.update(run, func(r *domain.ReportRun) {
		r.Degraded = res.Degraded
		r.Artifacts = domain.Artifacts{HTMLPath: out.HTMLPath, PDFPath: out.PDFPath, BackupJSONPath: backupPath}
		r.FinishedAt = &finished
	})
	o.advance(run, domain.RunStatusCompleted)

	duration := finished.Sub(run.StartedAt)
	log.Info().
		Dur("duration_ms", duration).
		Bool("degraded", res.Degraded).
		Str("html", out.HTMLPath).
		Str("pdf", out.PDFPath).
		Msg("Report run completed")
	o.emit(&events.RunCompletedData{
		RunID:      run.ID,
		Date:       iso,
		Degraded:   res.Degraded,
		HTMLPath:   out.HTMLPath,
		PDFPath:    out.PDFPath,
		BackupPath: backupPath,
		DurationMs: duration.Milliseconds(),
	})

	o.notify(ctx, day, res, out)
	return o.snapshot(run), nil
}

// analyze builds the AnalysisResult. A collection without a snapshot yields
// the degraded, index-only result.
func (o *Orchestrator) analyze(day time.Time, coll *collector.Collection) (*domain.AnalysisResult, error) {
	iso := calendar.ISODate(day)
	res := &domain.AnalysisResult{
		ReportDate:     iso,
		GeneratedAt:    o.now(),
		Indices:        coll.Indices,
		Flows:          coll.Flows,
		HourlyFlows:    coll.Hourly,
		Headlines:      coll.Headlines,
		Degraded:       coll.Degraded,
		DegradedReason: coll.DegradedReason,
	}

	if coll.Snapshot == nil {
		res.Sentiment = analysis.CalculateSentiment(domain.MarketSnapshot{Date: iso})
	} else {
		out, err := o.deps.Analyzer.Analyze(*coll.Snapshot)
		if err != nil {
			return nil, err
		}
		res.Surge = out.Surge
		res.Plunge = out.Plunge
		res.VolumeLeaders = out.VolumeLeaders
		res.Sectors = out.Sectors
		res.Themes = out.Themes
		res.Sentiment = out.Sentiment
	}

	if res.Surge == nil {
		res.Surge = []domain.ClassifiedStock{}
	}
	if res.Plunge == nil {
		res.Plunge = []domain.ClassifiedStock{}
	}
	if res.VolumeLeaders == nil {
		res.VolumeLeaders = []domain.StockRecord{}
	}
	if res.Sectors == nil {
		res.Sectors = []domain.SectorPerformance{}
	}
	if res.Themes == nil {
		res.Themes = []domain.Theme{}
	}
	if res.Headlines == nil {
		res.Headlines = []domain.Headline{}
	}
	return res, nil
}

func (o *Orchestrator) notify(ctx context.Context, day time.Time, res *domain.AnalysisResult, out report.Output) {
	n := o.deps.Notifier
	if n == nil || !n.Enabled() {
		return
	}
	err := n.Send(ctx, notify.Report{
		Date:       day,
		HTMLPath:   out.HTMLPath,
		PDFPath:    out.PDFPath,
		Highlights: report.Highlights(res),
	})
	if err != nil {
		o.log.Error().Err(err).Str("date", res.ReportDate).Msg("Report e-mail failed, run stays completed")
		if o.deps.Events != nil {
			o.deps.Events.EmitError(module, err, map[string]interface{}{"date": res.ReportDate, "step": "notify"})
		}
	}
}

func (o *Orchestrator) fail(run *domain.ReportRun, stage string, err error) (*domain.ReportRun, error) {
	finished := o.now()
	o.update(run, func(r *domain.ReportRun) {
		r.Error = err.Error()
		r.FinishedAt = &finished
	})
	o.advance(run, domain.RunStatusFailed)

	o.log.Error().
		Err(err).
		Str("run_id", run.ID).
		Str("date", run.TargetDate).
		Str("stage", stage).
		Msg("Report run failed")
	o.emit(&events.RunFailedData{RunID: run.ID, Date: run.TargetDate, Stage: stage, Error: err.Error()})

	return o.snapshot(run), fmt.Errorf("%s step failed for %s: %w", stage, run.TargetDate, err)
}

func (o *Orchestrator) advance(run *domain.ReportRun, next domain.RunStatus) {
	var from domain.RunStatus
	var err error
	o.update(run, func(r *domain.ReportRun) {
		from = r.Status
		err = r.Advance(next)
	})
	if err != nil {
		o.log.Error().Err(err).Str("run_id", run.ID).Msg("Invalid run transition")
		return
	}
	o.emit(&events.RunStatusChangedData{RunID: run.ID, Date: run.TargetDate, From: string(from), To: string(next)})
}

func (o *Orchestrator) emit(data events.EventData) {
	if o.deps.Events != nil {
		o.deps.Events.EmitTyped(module, data)
	}
}
