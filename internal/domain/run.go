package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrRunInProgress is returned when a trigger arrives while another run is executing
var ErrRunInProgress = errors.New("a report run is already in progress")

// RunStatus is the lifecycle state of a ReportRun
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusCollecting RunStatus = "collecting"
	RunStatusAnalyzing  RunStatus = "analyzing"
	RunStatusRendering  RunStatus = "rendering"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

var statusOrder = map[RunStatus]int{
	RunStatusPending:    0,
	RunStatusCollecting: 1,
	RunStatusAnalyzing:  2,
	RunStatusRendering:  3,
	RunStatusCompleted:  4,
}

// IsTerminal reports whether no further transition is allowed
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// TriggerKind records what started a run
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

// Artifacts are the files a completed run produced
type Artifacts struct {
	HTMLPath       string `json:"html_path,omitempty"`
	PDFPath        string `json:"pdf_path,omitempty"`
	BackupJSONPath string `json:"backup_json_path,omitempty"`
}

// ReportRun is one end-to-end pipeline execution for a date
type ReportRun struct {
	ID         string      `json:"id"`
	TargetDate string      `json:"target_date"` // YYYY-MM-DD
	Trigger    TriggerKind `json:"trigger"`
	Status     RunStatus   `json:"status"`
	Degraded   bool        `json:"degraded"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	Artifacts  Artifacts   `json:"artifacts"`
}

// Advance moves the run forward. Status never moves backwards and
// failed is reachable from any non-terminal state.
func (r *ReportRun) Advance(next RunStatus) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("run %s already %s", r.ID, r.Status)
	}
	if next == RunStatusFailed {
		r.Status = next
		return nil
	}
	cur, ok := statusOrder[r.Status]
	nxt, ok2 := statusOrder[next]
	if !ok || !ok2 || nxt <= cur {
		return fmt.Errorf("invalid run transition %s -> %s", r.Status, next)
	}
	r.Status = next
	return nil
}

// GateRejection is a non-fatal refusal to start a run
type GateRejection struct {
	Date   string
	Reason string
}

func (g *GateRejection) Error() string {
	return fmt.Sprintf("report for %s rejected: %s", g.Date, g.Reason)
}

// IsGateRejection reports whether err is (or wraps) a gating refusal
func IsGateRejection(err error) bool {
	var g *GateRejection
	return errors.As(err, &g)
}
