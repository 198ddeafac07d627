package reliability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

type fakeMirror struct {
	mu      sync.Mutex
	objects map[string]MirrorObject
	data    map[string][]byte
	failErr error
	deleted []string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{objects: map[string]MirrorObject{}, data: map[string][]byte{}}
}

func (f *fakeMirror) Upload(_ context.Context, name string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.data[name] = data
	f.objects[name] = MirrorObject{Name: name, SizeBytes: int64(len(data)), LastModified: time.Now()}
	return nil
}

func (f *fakeMirror) List(context.Context) ([]MirrorObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]MirrorObject, 0, len(f.objects))
	for _, o := range f.objects {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeMirror) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func analysisFixture(date string) *domain.AnalysisResult {
	surge := domain.ClassifiedStock{
		StockRecord: domain.NewStockRecord("005930", "삼성전자", 80000, 75000, 2_000_000),
		Sector:      "반도체",
		VolumeSurge: true,
		Reason:      "강한 매수세 유입",
	}
	plunge := domain.ClassifiedStock{
		StockRecord: domain.NewStockRecord("068270", "셀트리온", 150000, 180000, 400_000),
		Sector:      "바이오",
		Reason:      "매도세 확대",
	}
	return &domain.AnalysisResult{
		ReportDate:  date,
		GeneratedAt: time.Date(2024, 6, 7, 7, 20, 0, 0, time.UTC),
		Indices: domain.MarketIndices{
			Date:   date,
			KOSPI:  domain.NewIndexQuote(2722.67, 2689.5),
			KOSDAQ: domain.NewIndexQuote(864.71, 866.02),
			Source: "primary",
		},
		Surge:  []domain.ClassifiedStock{surge},
		Plunge: []domain.ClassifiedStock{plunge},
		Themes: []domain.Theme{{
			Name:                 "반도체",
			Kind:                 domain.ThemeKindSector,
			MegaSector:           "기술·IT",
			StockCount:           2,
			AvgChangeRate:        6.67,
			TotalVolume:          3_000_000,
			RepresentativeStocks: []domain.ClassifiedStock{surge},
			Description:          "메모리 반도체 관련 종목",
		}},
		Sentiment: domain.MarketSentiment{
			TotalStocks: 2, RisingStocks: 1, FallingStocks: 1,
			RisingRatio: 50, FallingRatio: 50, AvgChangeRate: -5, Mood: domain.MoodMildBear,
		},
		Flows: &domain.InvestorFlows{Date: date, KOSPI: domain.NetBuying{domain.InvestorForeign: 1234.5}.Normalize()},
		HourlyFlows: []domain.HourlyFlow{{
			Slot: "09:30", KOSPI: domain.NetBuying{domain.InvestorForeign: 100}, Synthetic: true,
		}},
		Headlines: []domain.Headline{{Title: "코스피 반등", Source: "naver"}},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil, zerolog.Nop())
	date := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)

	assert.False(t, store.Exists(date))
	_, err := store.Load(date)
	assert.True(t, errors.Is(err, ErrBackupNotFound))

	original := analysisFixture("2024-06-07")
	path, err := store.Save(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_data_20240607.json"), path)
	assert.True(t, store.Exists(date))

	loaded, err := store.Load(date)
	require.NoError(t, err)
	assert.Equal(t, original.Surge, loaded.Surge)
	assert.Equal(t, original.Plunge, loaded.Plunge)
	assert.Equal(t, original.Themes, loaded.Themes)
	assert.Equal(t, original.Sentiment, loaded.Sentiment)
	assert.Equal(t, original.Indices, loaded.Indices)
	assert.Equal(t, original.Flows, loaded.Flows)
	assert.True(t, loaded.HourlyFlows[0].Synthetic)
}

func TestStore_SaveInvalidDate(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil, zerolog.Nop())

	_, err := store.Save(context.Background(), &domain.AnalysisResult{ReportDate: "June 7"})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Mirror(t *testing.T) {
	t.Run("uploads a copy", func(t *testing.T) {
		mirror := newFakeMirror()
		store := NewStore(t.TempDir(), mirror, zerolog.Nop())

		_, err := store.Save(context.Background(), analysisFixture("2024-06-07"))
		require.NoError(t, err)
		assert.Contains(t, mirror.data, "report_data_20240607.json")
	})

	t.Run("mirror failure does not fail the save", func(t *testing.T) {
		mirror := newFakeMirror()
		mirror.failErr = errors.New("bucket unreachable")
		store := NewStore(t.TempDir(), mirror, zerolog.Nop())

		path, err := store.Save(context.Background(), analysisFixture("2024-06-07"))
		require.NoError(t, err)
		assert.FileExists(t, path)
	})
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil, zerolog.Nop())
	for _, d := range []string{"2024-06-05", "2024-06-07", "2024-06-04"} {
		_, err := store.Save(context.Background(), analysisFixture(d))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "daily_report_20240607.html"), []byte("<html>"), 0644))

	got, err := store.List()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-06-07", got[0].Date)
	assert.Equal(t, "2024-06-05", got[1].Date)
	assert.Equal(t, "2024-06-04", got[2].Date)
	assert.Positive(t, got[0].SizeBytes)

	empty := NewStore(filepath.Join(dir, "missing"), nil, zerolog.Nop())
	got, err = empty.List()
	require.NoError(t, err)
	assert.Empty(t, got)
}
