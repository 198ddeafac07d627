package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thetason/korean-stock-daily-report/internal/analysis"
	"github.com/Thetason/korean-stock-daily-report/internal/calendar"
	"github.com/Thetason/korean-stock-daily-report/internal/collector"
	"github.com/Thetason/korean-stock-daily-report/internal/config"
	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/events"
	"github.com/Thetason/korean-stock-daily-report/internal/notify"
	"github.com/Thetason/korean-stock-daily-report/internal/reliability"
	"github.com/Thetason/korean-stock-daily-report/internal/report"
	"github.com/Thetason/korean-stock-daily-report/internal/sectors"
	testutil "github.com/Thetason/korean-stock-daily-report/internal/testing"
)

type fakeCollector struct {
	mu          sync.Mutex
	collection  *collector.Collection
	err         error
	calls       int
	invalidated []time.Time
	entered     chan struct{}
	release     chan struct{}
}

func (f *fakeCollector) Collect(ctx context.Context, date time.Time) (*collector.Collection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	c := *f.collection
	return &c, nil
}

func (f *fakeCollector) Invalidate(date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, date)
	return nil
}

func (f *fakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingBackups struct{}

func (failingBackups) Exists(time.Time) bool { return false }
func (failingBackups) Save(context.Context, *domain.AnalysisResult) (string, error) {
	return "", errors.New("disk full")
}

// switchableBackups fails Save once fail is set
type switchableBackups struct {
	BackupStore
	fail bool
}

func (s *switchableBackups) Save(ctx context.Context, res *domain.AnalysisResult) (string, error) {
	if s.fail {
		return "", errors.New("disk full")
	}
	return s.BackupStore.Save(ctx, res)
}

type fakeNotifier struct {
	err  error
	sent []notify.Report
}

func (f *fakeNotifier) Enabled() bool { return true }
func (f *fakeNotifier) Send(_ context.Context, r notify.Report) error {
	f.sent = append(f.sent, r)
	return f.err
}

type harness struct {
	orch      *Orchestrator
	collector *fakeCollector
	store     *reliability.Store
	dir       string
	events    []events.Event
	mu        sync.Mutex
}

var kst = time.FixedZone("KST", 9*3600)

func sampleCollection() *collector.Collection {
	return &collector.Collection{
		Indices:   testutil.NewIndicesFixture(),
		Snapshot:  testutil.NewSnapshotFixture(),
		Headlines: []domain.Headline{{Title: "코스피 반등"}},
	}
}

func newHarness(t *testing.T, now time.Time, mutate func(*Deps)) *harness {
	t.Helper()
	dir := t.TempDir()
	log := zerolog.Nop()

	renderer, err := report.NewRenderer(report.Config{OutputDir: dir, PDFEnabled: true}, kst, log)
	require.NoError(t, err)

	h := &harness{
		collector: &fakeCollector{collection: sampleCollection()},
		store:     reliability.NewStore(dir, nil, log),
		dir:       dir,
	}
	bus := events.NewBus(log)
	bus.SubscribeAll(func(e *events.Event) {
		h.mu.Lock()
		h.events = append(h.events, *e)
		h.mu.Unlock()
	})

	deps := Deps{
		Calendar:  calendar.New(calendar.WithLocation(kst)),
		Collector: h.collector,
		Analyzer:  analysis.NewEngine(analysis.DefaultThresholds(), sectors.NewClassifier(log), nil, log),
		Renderer:  renderer,
		Backups:   h.store,
		Events:    events.NewManager(bus, log),
	}
	if mutate != nil {
		mutate(&deps)
	}

	h.orch = New(deps, log)
	h.orch.now = func() time.Time { return now }
	seq := 0
	h.orch.newID = func() string {
		seq++
		return fmt.Sprintf("run-%d", seq)
	}
	return h
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.EventType, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

func (h *harness) statusTrail() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, e := range h.events {
		if e.Type == events.RunStatusChanged {
			out = append(out, e.Data["to"].(string))
		}
	}
	return out
}

var (
	friday      = time.Date(2024, 6, 7, 0, 0, 0, 0, kst)
	fridayAfter = time.Date(2024, 6, 7, 17, 0, 0, 0, kst)
)

func TestTriggerForDate_Gates(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		date   time.Time
		reason string
	}{
		{"weekend", fridayAfter, time.Date(2024, 6, 8, 0, 0, 0, 0, kst), "not a trading day"},
		{"holiday", fridayAfter, time.Date(2024, 6, 6, 0, 0, 0, 0, kst), "not a trading day"},
		{"future", fridayAfter, time.Date(2024, 6, 10, 0, 0, 0, 0, kst), "future"},
		{"today before close", time.Date(2024, 6, 7, 16, 14, 0, 0, kst), friday, "not closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.now, nil)

			run, err := h.orch.TriggerForDate(context.Background(), tt.date, Options{})
			assert.Nil(t, run)
			require.Error(t, err)

			var gate *domain.GateRejection
			require.True(t, errors.As(err, &gate))
			assert.Contains(t, gate.Reason, tt.reason)
			assert.True(t, domain.IsGateRejection(err))

			assert.Equal(t, 0, h.collector.Calls())
			assert.Empty(t, h.orch.Runs())
			assert.Equal(t, []events.EventType{events.RunRejected}, h.eventTypes())

			entries, err := os.ReadDir(h.dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestTriggerForDate_Completes(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)

	run, err := h.orch.TriggerForDate(context.Background(), fridayAfter, Options{Trigger: domain.TriggerScheduled})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "2024-06-07", run.TargetDate)
	assert.Equal(t, domain.TriggerScheduled, run.Trigger)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.False(t, run.Degraded)
	require.NotNil(t, run.FinishedAt)

	assert.FileExists(t, run.Artifacts.HTMLPath)
	assert.FileExists(t, run.Artifacts.BackupJSONPath)
	assert.Empty(t, run.Artifacts.PDFPath, "no font configured, HTML only")
	assert.Equal(t, report.HTMLPath(h.dir, "20240607"), run.Artifacts.HTMLPath)

	assert.Equal(t, []string{"collecting", "analyzing", "rendering", "completed"}, h.statusTrail())
	types := h.eventTypes()
	assert.Equal(t, events.RunStarted, types[0])
	assert.Equal(t, events.RunCompleted, types[len(types)-1])

	saved, err := h.store.Load(friday)
	require.NoError(t, err)
	require.Len(t, saved.Surge, 2)
	assert.Equal(t, "000660", saved.Surge[0].Ticker)
	assert.Equal(t, "삼성전자", saved.Surge[1].Name)
	require.Len(t, saved.Plunge, 1)
	assert.Equal(t, 4, saved.Sentiment.TotalStocks)

	runs := h.orch.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusCompleted, runs[0].Status)
	got, ok := h.orch.Run("run-1")
	require.True(t, ok)
	assert.Equal(t, run.Artifacts, got.Artifacts)
	assert.False(t, h.orch.Running())
}

func TestTriggerForDate_DuplicateAndForce(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)
	ctx := context.Background()

	_, err := h.orch.TriggerForDate(ctx, friday, Options{})
	require.NoError(t, err)

	_, err = h.orch.TriggerForDate(ctx, friday, Options{})
	require.Error(t, err)
	var gate *domain.GateRejection
	require.True(t, errors.As(err, &gate))
	assert.Contains(t, gate.Reason, "already completed")
	assert.Equal(t, 1, h.collector.Calls())

	run, err := h.orch.TriggerForDate(ctx, friday, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, h.collector.Calls())
	assert.Equal(t, []time.Time{friday}, h.collector.invalidated)
	assert.Len(t, h.orch.Runs(), 2)
}

func TestTriggerForDate_RunInProgress(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)
	h.collector.entered = make(chan struct{})
	h.collector.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
		done <- err
	}()

	<-h.collector.entered
	assert.True(t, h.orch.Running())

	_, err := h.orch.TriggerForDate(context.Background(), time.Date(2024, 6, 5, 0, 0, 0, 0, kst), Options{})
	assert.True(t, errors.Is(err, domain.ErrRunInProgress))

	close(h.collector.release)
	require.NoError(t, <-done)
	assert.False(t, h.orch.Running())
	assert.Len(t, h.orch.Runs(), 1)
}

func TestTriggerForDate_BatchFailureFailsRun(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)
	h.collector.err = fmt.Errorf("%w: batch 3/6: timeout", collector.ErrBatchFailed)

	run, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, collector.ErrBatchFailed))
	assert.False(t, domain.IsGateRejection(err))

	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "batch 3/6")
	assert.Empty(t, run.Artifacts.HTMLPath)
	assert.Equal(t, []string{"collecting", "failed"}, h.statusTrail())
	assert.Contains(t, h.eventTypes(), events.RunFailed)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, h.orch.Running())
}

func TestTriggerForDate_DuplicateTickerFailsAnalysis(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)
	coll := sampleCollection()
	coll.Snapshot.Records = append(coll.Snapshot.Records, coll.Snapshot.Records[0])
	h.collector.collection = coll

	run, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateTicker))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.False(t, h.store.Exists(friday))
}

func TestTriggerForDate_DegradedIndexOnly(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)
	h.collector.collection = &collector.Collection{
		Indices:        domain.ZeroIndices("2024-06-07"),
		Headlines:      []domain.Headline{},
		Degraded:       true,
		DegradedReason: "universe-0: vendor down",
	}

	run, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.True(t, run.Degraded)

	saved, err := h.store.Load(friday)
	require.NoError(t, err)
	assert.True(t, saved.Degraded)
	assert.Equal(t, "universe-0: vendor down", saved.DegradedReason)
	assert.Empty(t, saved.Surge)
	assert.NotNil(t, saved.Surge)
	assert.Equal(t, domain.MoodFlat, saved.Sentiment.Mood)
}

func TestTriggerForDate_PersistFailureLeavesNoReport(t *testing.T) {
	h := newHarness(t, fridayAfter, func(d *Deps) { d.Backups = failingBackups{} })

	run, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist step failed")
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	_, statErr := os.Stat(report.HTMLPath(h.dir, "20240607"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTriggerForDate_ForcedRerunPersistFailureKeepsPreviousReport(t *testing.T) {
	backups := &switchableBackups{}
	h := newHarness(t, fridayAfter, func(d *Deps) {
		backups.BackupStore = d.Backups
		d.Backups = backups
	})

	_, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.NoError(t, err)
	htmlPath := report.HTMLPath(h.dir, "20240607")
	previous, err := os.ReadFile(htmlPath)
	require.NoError(t, err)

	backups.fail = true
	run, err := h.orch.TriggerForDate(context.Background(), friday, Options{Force: true})
	require.Error(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	current, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Equal(t, previous, current)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".staged")
	}
}

func TestTriggerForDate_NotifyFailureKeepsCompleted(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	h := newHarness(t, fridayAfter, func(d *Deps) { d.Notifier = notifier })

	run, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, run.Artifacts.HTMLPath, notifier.sent[0].HTMLPath)
	assert.NotEmpty(t, notifier.sent[0].Highlights)
	assert.Contains(t, h.eventTypes(), events.ErrorOccurred)
}

func TestTriggerManual_DefaultsToToday(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)

	run, err := h.orch.TriggerManual(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-07", run.TargetDate)
	assert.Equal(t, domain.TriggerManual, run.Trigger)

	past := time.Date(2024, 6, 5, 9, 0, 0, 0, kst)
	run, err = h.orch.TriggerManual(context.Background(), &past, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-05", run.TargetDate)
	assert.Equal(t, "run-2", h.orch.Runs()[0].ID)
}

func TestTriggerScheduled_BeforeCloseRejected(t *testing.T) {
	h := newHarness(t, time.Date(2024, 6, 7, 16, 10, 0, 0, kst), nil)

	_, err := h.orch.TriggerScheduled(context.Background())
	assert.True(t, domain.IsGateRejection(err))
}

func TestTriggerScheduled_DefaultSlotCompletes(t *testing.T) {
	hour, minute, err := config.ParseRunTime(config.DefaultRunTime)
	require.NoError(t, err)
	h := newHarness(t, time.Date(2024, 6, 7, hour, minute, 0, 0, kst), nil)

	run, err := h.orch.TriggerScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, domain.TriggerScheduled, run.Trigger)
}

func TestRuns_Bounded(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)
	for i := 0; i < maxRuns+10; i++ {
		h.orch.record(&domain.ReportRun{ID: fmt.Sprintf("r%d", i)})
	}

	runs := h.orch.Runs()
	require.Len(t, runs, maxRuns)
	assert.Equal(t, fmt.Sprintf("r%d", maxRuns+9), runs[0].ID)
	_, ok := h.orch.Run("r0")
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	h := newHarness(t, fridayAfter, nil)

	assert.NoError(t, h.orch.Check(friday, Options{}))
	assert.True(t, domain.IsGateRejection(h.orch.Check(time.Date(2024, 6, 6, 0, 0, 0, 0, kst), Options{})))
	assert.Zero(t, h.collector.Calls(), "check never starts a run")

	_, err := h.orch.TriggerForDate(context.Background(), friday, Options{})
	require.NoError(t, err)
	assert.True(t, domain.IsGateRejection(h.orch.Check(friday, Options{})))
	assert.NoError(t, h.orch.Check(friday, Options{Force: true}))
}
