// Package report renders an analysis result into the daily HTML report and,
// when a UTF-8 font is configured, a PDF copy.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/utils"
)

//go:embed templates/daily_report.html
var templateFS embed.FS

// Config controls where and what is rendered
type Config struct {
	OutputDir   string
	PDFEnabled  bool
	PDFFontPath string // UTF-8 TTF with Hangul glyphs
}

// Output lists the files a render produced. PDFPath is empty when no PDF
// was written. Render leaves the files staged; they reach HTMLPath and
// PDFPath only on Commit.
type Output struct {
	HTMLPath string
	PDFPath  string

	stagedHTML string
	stagedPDF  string
	pdfTarget  string
}

// Renderer writes daily_report_YYYYMMDD.html and .pdf
type Renderer struct {
	cfg  Config
	tmpl *template.Template
	loc  *time.Location
	now  func() time.Time
	log  zerolog.Logger
}

// NewRenderer parses the embedded template
func NewRenderer(cfg Config, loc *time.Location, log zerolog.Logger) (*Renderer, error) {
	tmpl, err := template.New("daily_report.html").Funcs(template.FuncMap{
		"price":     FormatPrice,
		"rate":      FormatChangeRate,
		"volume":    FormatVolume,
		"eok":       FormatEok,
		"rateClass": rateClass,
	}).ParseFS(templateFS, "templates/daily_report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		cfg:  cfg,
		tmpl: tmpl,
		loc:  loc,
		now:  time.Now,
		log:  log.With().Str("component", "report").Logger(),
	}, nil
}

// HTMLPath returns the deterministic HTML artifact path for a YYYYMMDD key
func HTMLPath(dir, dateKey string) string {
	return filepath.Join(dir, "daily_report_"+dateKey+".html")
}

// PDFPath returns the deterministic PDF artifact path for a YYYYMMDD key
func PDFPath(dir, dateKey string) string {
	return filepath.Join(dir, "daily_report_"+dateKey+".pdf")
}

func stagingPath(final string) string {
	return filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+".staged")
}

// Render stages the HTML report and the optional PDF next to their final
// paths. A PDF that cannot be produced is logged and skipped; only HTML
// failures are errors. Call Commit to publish or Discard to drop them.
func (r *Renderer) Render(ctx context.Context, res *domain.AnalysisResult) (Output, error) {
	date, err := time.ParseInLocation("2006-01-02", res.ReportDate, r.loc)
	if err != nil {
		return Output{}, fmt.Errorf("invalid report date %q: %w", res.ReportDate, err)
	}
	key := date.Format("20060102")
	view := r.buildView(res, date)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return Output{}, fmt.Errorf("failed to render report: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	out := Output{
		HTMLPath:  HTMLPath(r.cfg.OutputDir, key),
		pdfTarget: PDFPath(r.cfg.OutputDir, key),
	}
	out.stagedHTML = stagingPath(out.HTMLPath)
	if err := utils.WriteFileAtomic(out.stagedHTML, buf.Bytes(), 0644); err != nil {
		return Output{}, fmt.Errorf("failed to write html report: %w", err)
	}
	r.log.Debug().Str("path", out.stagedHTML).Msg("HTML report staged")

	if staged, ok := r.renderPDF(view, stagingPath(out.pdfTarget)); ok {
		out.stagedPDF = staged
		out.PDFPath = out.pdfTarget
	}
	return out, nil
}

// Commit moves staged files into place. A date rendered without a PDF
// loses any PDF left by an earlier run, so the pair always matches.
func (r *Renderer) Commit(out Output) (Output, error) {
	if out.stagedHTML == "" {
		return out, errors.New("nothing staged to commit")
	}
	if err := os.Rename(out.stagedHTML, out.HTMLPath); err != nil {
		r.Discard(out)
		return out, fmt.Errorf("failed to publish html report: %w", err)
	}
	r.log.Info().Str("path", out.HTMLPath).Msg("HTML report written")

	if out.stagedPDF != "" {
		if err := os.Rename(out.stagedPDF, out.PDFPath); err != nil {
			r.log.Warn().Err(err).Msg("Failed to publish PDF, HTML only")
			removeQuietly(r.log, out.stagedPDF)
			out.PDFPath = ""
		} else {
			r.log.Info().Str("path", out.PDFPath).Msg("PDF report written")
		}
	}
	if out.PDFPath == "" && out.pdfTarget != "" {
		removeQuietly(r.log, out.pdfTarget)
	}

	out.stagedHTML, out.stagedPDF = "", ""
	return out, nil
}

// Discard drops staged files and leaves published reports untouched
func (r *Renderer) Discard(out Output) {
	for _, p := range []string{out.stagedHTML, out.stagedPDF} {
		if p != "" {
			removeQuietly(r.log, p)
		}
	}
}

func removeQuietly(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove report file")
	}
}

func (r *Renderer) renderPDF(view *reportView, path string) (string, bool) {
	if !r.cfg.PDFEnabled {
		return "", false
	}
	if r.cfg.PDFFontPath == "" {
		r.log.Debug().Msg("No PDF font configured, skipping PDF")
		return "", false
	}
	if _, err := os.Stat(r.cfg.PDFFontPath); err != nil {
		r.log.Warn().Err(err).Str("font", r.cfg.PDFFontPath).Msg("PDF font unavailable, HTML only")
		return "", false
	}

	data, err := buildPDF(view, r.cfg.PDFFontPath)
	if err != nil {
		r.log.Warn().Err(err).Msg("PDF generation failed, HTML only")
		return "", false
	}

	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		r.log.Warn().Err(err).Msg("Failed to write PDF, HTML only")
		return "", false
	}
	r.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("PDF report staged")
	return path, true
}
