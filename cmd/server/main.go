// Package main is the entry point for the Korean stock daily report service.
//
// Modes:
//   - scheduler (default): runs the weekday report job, daily maintenance and the HTTP API
//   - manual: generates the report for -date (today when empty) and exits
//   - check: prints whether a report can be generated for -date and exits
//   - maintenance: runs the nightly housekeeping job once and exits
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thetason/korean-stock-daily-report/internal/analysis"
	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/clients/marketdata"
	"github.com/Thetason/korean-stock-daily-report/internal/clients/news"
	"github.com/Thetason/korean-stock-daily-report/internal/collector"
	"github.com/Thetason/korean-stock-daily-report/internal/config"
	"github.com/Thetason/korean-stock-daily-report/internal/database"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/events"
	"github.com/Thetason/korean-stock-daily-report/internal/notify"
	"github.com/Thetason/korean-stock-daily-report/internal/orchestrator"
	"github.com/Thetason/korean-stock-daily-report/internal/reliability"
	"github.com/Thetason/korean-stock-daily-report/internal/report"
	"github.com/Thetason/korean-stock-daily-report/internal/scheduler"
	"github.com/Thetason/korean-stock-daily-report/internal/sectors"
	"github.com/Thetason/korean-stock-daily-report/internal/server"
	"github.com/Thetason/korean-stock-daily-report/internal/sources"
	"github.com/Thetason/korean-stock-daily-report/pkg/logger"
)

const maintenanceSchedule = "0 30 2 * * *"

// exit codes for the one-shot modes
const (
	exitOK       = 0
	exitFailed   = 1
	exitRejected = 2
)

// app holds the wired components
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	cal      *calendar.TradingCalendar
	sectorDB *database.DB
	bus      *events.Bus
	store    *reliability.Store
	orch     *orchestrator.Orchestrator
}

func main() {
	mode := flag.String("mode", "scheduler", "scheduler, manual, check or maintenance")
	dateFlag := flag.String("date", "", "target date YYYY-MM-DD (manual and check modes, default today)")
	force := flag.Bool("force", false, "regenerate a report that already exists (manual mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		File:   cfg.LogFile,
	})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	var date *time.Time
	if *dateFlag != "" {
		d, err := a.cal.ParseDate(*dateFlag)
		if err != nil {
			a.close()
			log.Fatal().Err(err).Msg("Invalid -date")
		}
		date = &d
	}

	code := exitOK
	switch *mode {
	case "manual":
		code = a.runManual(ctx, date, *force)
	case "check":
		code = a.runCheck(date)
	case "maintenance":
		code = a.runMaintenance()
	case "scheduler":
		a.runScheduler(ctx)
	default:
		log.Error().Str("mode", *mode).Msg("Unknown mode")
		code = exitFailed
	}

	a.close()
	stop()
	os.Exit(code)
}

// wire builds every component from configuration
func wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	loc := cfg.Location()
	a := &app{
		cfg: cfg,
		log: log,
		cal: calendar.New(calendar.WithLocation(loc)),
		bus: events.NewBus(log),
	}

	// Sector reference data
	classifier := sectors.NewClassifier(log)
	dbPath := cfg.Analysis.SectorDBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.DataDir, "sectors.db")
	}
	db, err := database.New(database.Config{Path: dbPath, Name: "sectors"})
	if err != nil {
		return nil, err
	}
	a.sectorDB = db
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate sector database: %w", err)
	}
	if err := classifier.LoadStore(ctx, sectors.NewStore(db)); err != nil {
		log.Warn().Err(err).Msg("Sector store unavailable, using built-in tables")
	}

	// Upstream sources
	primary := marketdata.NewClient(marketdata.Config{
		Name:           "primary",
		BaseURL:        cfg.Sources.MarketDataURL,
		APIKey:         cfg.Sources.MarketDataKey,
		Timeout:        cfg.Sources.RequestTimeout,
		RequestsPerSec: cfg.Collector.RequestsPerSec,
	}, log)
	fallback := marketdata.NewClient(marketdata.Config{
		Name:           "fallback",
		BaseURL:        cfg.Sources.FallbackDataURL,
		Timeout:        cfg.Sources.RequestTimeout,
		RequestsPerSec: cfg.Collector.RequestsPerSec,
	}, log)
	quotes := primary
	if !primary.Configured() && fallback.Configured() {
		quotes = fallback
	}
	if !quotes.Configured() {
		log.Warn().Msg("No market data URL configured, reports will be degraded")
	}

	cacheDir := ""
	if cfg.Collector.CacheSnapshots {
		cacheDir = cfg.SnapshotDir()
	}
	coll := collector.New(collector.Config{
		BatchSize:    cfg.Collector.BatchSize,
		MaxParallel:  cfg.Collector.MaxParallel,
		MaxHeadlines: cfg.Sources.MaxHeadlines,
		CacheDir:     cacheDir,
	}, collector.Sources{
		Indices:  []sources.IndexSource{primary, fallback},
		Universe: []sources.UniverseSource{primary, fallback},
		Quotes:   quotes,
		Flows:    primary,
		News:     news.NewScraper(cfg.Sources.NewsURLs, cfg.Sources.RequestTimeout, loc, log),
	}, log)

	engine := analysis.NewEngine(analysis.Thresholds{
		Surge:      cfg.Analysis.SurgeThreshold,
		Plunge:     cfg.Analysis.PlungeThreshold,
		MaxSurge:   cfg.Analysis.MaxSurge,
		MaxPlunge:  cfg.Analysis.MaxPlunge,
		VolumeTopN: cfg.Analysis.VolumeTopN,
	}, classifier, nil, log)

	renderer, err := report.NewRenderer(report.Config{
		OutputDir:   cfg.ReportsDir,
		PDFEnabled:  cfg.Render.PDFEnabled,
		PDFFontPath: cfg.Render.PDFFontPath,
	}, loc, log)
	if err != nil {
		return nil, err
	}

	// Backups, optionally mirrored to S3-compatible storage
	var mirror reliability.Mirror
	if cfg.Backup.Bucket != "" {
		m, err := reliability.NewS3Mirror(ctx, reliability.MirrorConfig{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
			Prefix:    cfg.Backup.Prefix,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("Backup mirror disabled")
		} else {
			mirror = m
		}
	}
	a.store = reliability.NewStore(cfg.ReportsDir, mirror, log)

	deps := orchestrator.Deps{
		Calendar:  a.cal,
		Collector: coll,
		Analyzer:  engine,
		Renderer:  renderer,
		Backups:   a.store,
		Events:    events.NewManager(a.bus, log),
	}
	if cfg.EmailEnabled() {
		deps.Notifier = notify.NewMailer(notify.Config{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			From:       cfg.Email.From,
			Recipients: cfg.Email.Recipients,
		}, log)
	}
	a.orch = orchestrator.New(deps, log)

	return a, nil
}

func (a *app) close() {
	if a.sectorDB != nil {
		if err := a.sectorDB.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close sector database")
		}
	}
}

func (a *app) runManual(ctx context.Context, date *time.Time, force bool) int {
	run, err := a.orch.TriggerManual(ctx, date, force)
	switch {
	case domain.IsGateRejection(err):
		a.log.Warn().Str("reason", err.Error()).Msg("Report not generated")
		return exitRejected
	case err != nil:
		a.log.Error().Err(err).Msg("Report run failed")
		return exitFailed
	}

	a.log.Info().
		Str("run_id", run.ID).
		Str("date", run.TargetDate).
		Bool("degraded", run.Degraded).
		Str("html", run.Artifacts.HTMLPath).
		Str("pdf", run.Artifacts.PDFPath).
		Str("backup", run.Artifacts.BackupJSONPath).
		Msg("Report generated")
	return exitOK
}

func (a *app) runCheck(date *time.Time) int {
	target := time.Now()
	if date != nil {
		target = *date
	}

	err := a.orch.Check(target, orchestrator.Options{Trigger: domain.TriggerManual})
	iso := calendar.ISODate(target.In(a.cal.Location()))
	if err != nil {
		fmt.Printf("%s: cannot generate report: %v\n", iso, err)
		return exitRejected
	}

	prev, _ := a.cal.PreviousTradingDay(target)
	fmt.Printf("%s: report can be generated (previous trading day %s)\n", iso, calendar.ISODate(prev))
	return exitOK
}

func (a *app) maintenanceJob() *reliability.MaintenanceJob {
	return reliability.NewMaintenanceJob(reliability.MaintenanceConfig{
		CacheDir:      a.cfg.SnapshotDir(),
		RetentionDays: a.cfg.Collector.RetentionDays,
	}, a.store, a.sectorDB, a.log)
}

// runMaintenance runs the nightly housekeeping once, outside the schedule
func (a *app) runMaintenance() int {
	sched := scheduler.New(a.cal.Location(), a.log)
	if err := sched.RunNow(a.maintenanceJob()); err != nil {
		a.log.Error().Err(err).Msg("Maintenance failed")
		return exitFailed
	}
	return exitOK
}

func (a *app) runScheduler(ctx context.Context) {
	cfg := a.cfg
	sched := scheduler.New(a.cal.Location(), a.log)

	if cfg.Schedule.Enabled {
		hour, minute, _ := config.ParseRunTime(cfg.Schedule.RunTime) // validated on load
		job := scheduler.NewReportJob(a.orch, hour, minute, cfg.Schedule.GraceWindow, a.cal.Location(), a.log)
		if err := sched.AddJob(job.Schedule(), job); err != nil {
			a.log.Fatal().Err(err).Msg("Failed to register report job")
		}
	} else {
		a.log.Warn().Msg("Scheduled reports disabled, API triggers only")
	}

	if err := sched.AddJob(maintenanceSchedule, a.maintenanceJob()); err != nil {
		a.log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	srv := server.New(server.Config{
		Log:        a.log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Runner:     a.orch,
		Calendar:   a.cal,
		Backups:    a.store,
		ReportsDir: cfg.ReportsDir,
		Bus:        a.bus,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sched.Start()
	a.log.Info().
		Str("run_time", cfg.Schedule.RunTime).
		Str("timezone", a.cal.Location().String()).
		Msg("Daily report service started")

	<-ctx.Done()
	a.log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	sched.Stop()

	a.log.Info().Msg("Shutdown complete")
}
