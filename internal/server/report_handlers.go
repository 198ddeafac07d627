package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/orchestrator"
	"github.com/Thetason/korean-stock-daily-report/internal/reliability"
	"github.com/Thetason/korean-stock-daily-report/internal/report"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

// TriggerResponse is returned when a manual run was accepted
type TriggerResponse struct {
	Status string `json:"status"`
	Date   string `json:"date"`
	Force  bool   `json:"force"`
}

// CalendarDayResponse describes one date in the trading calendar
type CalendarDayResponse struct {
	Date               string `json:"date"`
	TradingDay         bool   `json:"trading_day"`
	Holiday            bool   `json:"holiday"`
	HolidayName        string `json:"holiday_name,omitempty"`
	PreviousTradingDay string `json:"previous_trading_day,omitempty"`
	CanGenerateReport  bool   `json:"can_generate_report"`
}

// HolidayResponse is one listed market closure
type HolidayResponse struct {
	Date string `json:"date"`
	Name string `json:"name,omitempty"`
}

// handleTrigger handles POST /api/reports/trigger?date=YYYY-MM-DD&force=true.
// Gates are checked synchronously; the run itself executes in the background.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	date := s.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := s.cal.ParseDate(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = parsed
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = b
	}

	opts := orchestrator.Options{Force: force, Trigger: domain.TriggerManual}
	if err := s.runner.Check(date, opts); err != nil {
		var gate *domain.GateRejection
		switch {
		case errors.As(err, &gate):
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  err.Error(),
				"date":   gate.Date,
				"reason": gate.Reason,
			})
		case errors.Is(err, domain.ErrRunInProgress):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	iso := calendar.ISODate(date.In(s.cal.Location()))
	go func() {
		run, err := s.runner.TriggerForDate(s.runCtx, date, opts)
		if err != nil {
			s.log.Error().Err(err).Str("date", iso).Msg("Manual report run failed")
			return
		}
		s.log.Info().Str("run_id", run.ID).Str("date", iso).Msg("Manual report run finished")
	}()

	s.writeJSON(w, http.StatusAccepted, TriggerResponse{Status: "accepted", Date: iso, Force: force})
}

// handleListReports handles GET /api/reports
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.backups.List()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list backups")
		s.writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// handleGetReport handles GET /api/reports/{date}, returning the persisted analysis
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}

	res, err := s.backups.Load(date)
	if errors.Is(err, reliability.ErrBackupNotFound) {
		s.writeError(w, http.StatusNotFound, "no report for "+calendar.ISODate(date))
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load backup")
		s.writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, report.HTMLPath)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, report.PDFPath)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, pathFor func(dir, key string) string) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	path := pathFor(s.reportsDir, calendar.DateKey(date))
	if !utils.FileExists(path) {
		s.writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	http.ServeFile(w, r, path)
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Runs())
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runner.Run(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleCalendarDay handles GET /api/calendar/{date}
func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	now := s.now()

	resp := CalendarDayResponse{
		Date:        calendar.ISODate(date),
		TradingDay:  s.cal.IsTradingDay(date),
		Holiday:     s.cal.IsHoliday(date),
		HolidayName: calendar.HolidayName(date),
	}
	if prev, err := s.cal.PreviousTradingDay(date); err == nil {
		resp.PreviousTradingDay = calendar.ISODate(prev)
	}
	switch {
	case !resp.TradingDay:
	case s.cal.SameDay(date, now):
		resp.CanGenerateReport = s.cal.CanGenerateTodayReport(now)
	default:
		resp.CanGenerateReport = !date.After(now)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleHolidays handles GET /api/calendar/holidays/{year}
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 2999 {
		s.writeError(w, http.StatusBadRequest, "invalid year")
		return
	}

	days := s.cal.Holidays(year)
	out := make([]HolidayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, HolidayResponse{Date: calendar.ISODate(d), Name: calendar.HolidayName(d)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := s.cal.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return date, true
}
