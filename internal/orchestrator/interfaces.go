package orchestrator

import (
	"context"
	"time"

	"github.com/Thetason/korean-stock-daily-report/internal/analysis"
	"github.com/Thetason/korean-stock-daily-report/internal/collector"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/notify"
	"github.com/Thetason/korean-stock-daily-report/internal/report"
)

// Collector gathers the raw inputs for a date
type Collector interface {
	Collect(ctx context.Context, date time.Time) (*collector.Collection, error)
	Invalidate(date time.Time) error
}

// Analyzer turns a snapshot into classified output
type Analyzer interface {
	Analyze(snapshot domain.MarketSnapshot) (*analysis.Result, error)
}

// Renderer stages the HTML (and optional PDF) report. Staged files are
// published with Commit once the backup exists, or dropped with Discard.
type Renderer interface {
	Render(ctx context.Context, res *domain.AnalysisResult) (report.Output, error)
	Commit(out report.Output) (report.Output, error)
	Discard(out report.Output)
}

// BackupStore persists the JSON backup that marks a date as completed
type BackupStore interface {
	Exists(date time.Time) bool
	Save(ctx context.Context, res *domain.AnalysisResult) (string, error)
}

// Notifier mails a finished report
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, r notify.Report) error
}
