package orchestrator

import "github.com/Thetason/korean-stock-daily-report/internal/domain"

func (o *Orchestrator) record(run *domain.ReportRun) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	o.runs = append(o.runs, run)
	if len(o.runs) > maxRuns {
		o.runs = o.runs[len(o.runs)-maxRuns:]
	}
}

func (o *Orchestrator) update(run *domain.ReportRun, fn func(*domain.ReportRun)) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	fn(run)
}

func (o *Orchestrator) snapshot(run *domain.ReportRun) *domain.ReportRun {
	o.runsMu.RLock()
	defer o.runsMu.RUnlock()
	return copyRun(run)
}

func copyRun(run *domain.ReportRun) *domain.ReportRun {
	c := *run
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Runs returns the recent runs, newest first
func (o *Orchestrator) Runs() []domain.ReportRun {
	o.runsMu.RLock()
	defer o.runsMu.RUnlock()

	out := make([]domain.ReportRun, 0, len(o.runs))
	for i := len(o.runs) - 1; i >= 0; i-- {
		out = append(out, *copyRun(o.runs[i]))
	}
	return out
}

// Run returns the run with id, if it is still retained
func (o *Orchestrator) Run(id string) (*domain.ReportRun, bool) {
	o.runsMu.RLock()
	defer o.runsMu.RUnlock()
	for _, r := range o.runs {
		if r.ID == id {
			return copyRun(r), true
		}
	}
	return nil, false
}
