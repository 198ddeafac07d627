// Package server provides the HTTP API for triggering and browsing daily reports.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/events"
	"github.com/Thetason/korean-stock-daily-report/internal/orchestrator"
	"github.com/Thetason/korean-stock-daily-report/internal/reliability"
)

// ReportRunner is the orchestrator surface used by the API
type ReportRunner interface {
	Check(date time.Time, opts orchestrator.Options) error
	TriggerForDate(ctx context.Context, date time.Time, opts orchestrator.Options) (*domain.ReportRun, error)
	Runs() []domain.ReportRun
	Run(id string) (*domain.ReportRun, bool)
	Running() bool
}

// BackupReader lists and loads persisted report data
type BackupReader interface {
	List() ([]reliability.BackupInfo, error)
	Load(date time.Time) (*domain.AnalysisResult, error)
}

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	Runner     ReportRunner
	Calendar   *calendar.TradingCalendar
	Backups    BackupReader
	ReportsDir string
	Bus        *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	port       int
	runner     ReportRunner
	cal        *calendar.TradingCalendar
	backups    BackupReader
	reportsDir string
	bus        *events.Bus

	// background runs started by the trigger endpoint
	runCtx    context.Context
	cancelRun context.CancelFunc
	now       func() time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		port:       cfg.Port,
		runner:     cfg.Runner,
		cal:        cfg.Calendar,
		backups:    cfg.Backups,
		reportsDir: cfg.ReportsDir,
		bus:        cfg.Bus,
		runCtx:     runCtx,
		cancelRun:  cancel,
		now:        time.Now,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: /api/events/ws connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// event stream stays outside the request timeout
		if s.bus != nil {
			r.Get("/events/ws", NewEventsStreamHandler(s.bus, s.log).ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !devMode {
				r.Use(middleware.Compress(5))
			}

			r.Post("/reports/trigger", s.handleTrigger)
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{date}", s.handleGetReport)
			r.Get("/reports/{date}/html", s.handleReportHTML)
			r.Get("/reports/{date}/pdf", s.handleReportPDF)

			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)

			r.Get("/calendar/{date}", s.handleCalendarDay)
			r.Get("/calendar/holidays/{year}", s.handleHolidays)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels runs it started
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancelRun()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
