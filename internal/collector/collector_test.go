package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/sources"
)

var testDate = time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)

type fakeIndex struct {
	ok bool
}

func (f fakeIndex) Indices(context.Context, time.Time) sources.Result[domain.MarketIndices] {
	if !f.ok {
		return sources.Unavailable[domain.MarketIndices]("down")
	}
	return sources.Ok(domain.MarketIndices{Date: "2024-06-07", KOSPI: domain.NewIndexQuote(2700, 2690), Source: "fake"})
}

type fakeUniverse struct {
	listings []domain.Listing
}

func (f fakeUniverse) Universe(context.Context, time.Time) sources.Result[[]domain.Listing] {
	if f.listings == nil {
		return sources.Unavailable[[]domain.Listing]("universe down")
	}
	return sources.Ok(f.listings)
}

type fakeQuotes struct {
	mu       sync.Mutex
	batches  [][]string
	failOn   string
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (f *fakeQuotes) Quotes(ctx context.Context, _ time.Time, batch []domain.Listing) ([]domain.StockRecord, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	time.Sleep(f.delay)

	var tickers []string
	out := make([]domain.StockRecord, 0, len(batch))
	for _, l := range batch {
		if l.Ticker == f.failOn {
			return nil, errors.New("vendor timeout")
		}
		tickers = append(tickers, l.Ticker)
		out = append(out, domain.NewStockRecord(l.Ticker, l.Name, 1100, 1000, 10))
	}
	f.mu.Lock()
	f.batches = append(f.batches, tickers)
	f.mu.Unlock()
	return out, nil
}

type fakeNews struct {
	ok bool
}

func (f fakeNews) Headlines(context.Context, int) sources.Result[[]domain.Headline] {
	if !f.ok {
		return sources.Unavailable[[]domain.Headline]("blocked")
	}
	return sources.Ok([]domain.Headline{
		{Title: "코스피 상승", PublishedAt: testDate.Add(15 * time.Hour)},
		{Title: "전일 마감 시황", PublishedAt: testDate.Add(-2 * time.Hour)},
		{Title: "날짜 없는 기사"},
	})
}

type fakeFlows struct{}

func (fakeFlows) InvestorFlows(context.Context, time.Time) sources.Result[domain.InvestorFlows] {
	return sources.Ok(domain.InvestorFlows{KOSPI: domain.NetBuying{domain.InvestorForeign: 100}})
}

type fixedProbe float64

func (p fixedProbe) UsedPercent() (float64, error) { return float64(p), nil }

func listings(n int) []domain.Listing {
	out := make([]domain.Listing, n)
	for i := range out {
		out[i] = domain.Listing{Ticker: fmt.Sprintf("%06d", i), Name: fmt.Sprintf("종목%d", i), Market: domain.MarketKOSPI}
	}
	return out
}

func TestCollect_BatchesPreserveOrder(t *testing.T) {
	quotes := &fakeQuotes{delay: time.Millisecond}
	c := New(Config{BatchSize: 7, MaxParallel: 4}, Sources{
		Indices:  []sources.IndexSource{fakeIndex{ok: true}},
		Universe: []sources.UniverseSource{fakeUniverse{listings: listings(50)}},
		Quotes:   quotes,
		Flows:    fakeFlows{},
		News:     fakeNews{ok: true},
	}, zerolog.Nop())
	c.SetMemoryProbe(fixedProbe(10))

	out, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	require.NotNil(t, out.Snapshot)

	assert.False(t, out.Degraded)
	assert.Equal(t, "2024-06-07", out.Snapshot.Date)
	require.Len(t, out.Snapshot.Records, 50)
	for i, r := range out.Snapshot.Records {
		assert.Equal(t, fmt.Sprintf("%06d", i), r.Ticker)
	}
	assert.Len(t, quotes.batches, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&quotes.peak), int32(4))

	assert.Equal(t, "fake", out.Indices.Source)
	require.NotNil(t, out.Flows)
	require.Len(t, out.Hourly, len(domain.HourlySlots))
	assert.True(t, out.Hourly[0].Synthetic)
	require.Len(t, out.Headlines, 1)
	assert.Equal(t, "코스피 상승", out.Headlines[0].Title)
}

func TestHeadlinesOn(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	date := time.Date(2024, 6, 7, 0, 0, 0, 0, kst)
	items := []domain.Headline{
		{Title: "same day", PublishedAt: time.Date(2024, 6, 7, 15, 40, 0, 0, kst)},
		{Title: "same day in utc", PublishedAt: time.Date(2024, 6, 6, 23, 30, 0, 0, time.UTC)},
		{Title: "previous day", PublishedAt: time.Date(2024, 6, 6, 18, 0, 0, 0, kst)},
		{Title: "undated"},
	}

	titles := func(hs []domain.Headline) []string {
		out := make([]string, 0, len(hs))
		for _, h := range hs {
			out = append(out, h.Title)
		}
		return out
	}

	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"today keeps undated", time.Date(2024, 6, 7, 16, 20, 0, 0, kst), []string{"same day", "same day in utc", "undated"}},
		{"back-dated drops undated", time.Date(2024, 6, 10, 9, 0, 0, 0, kst), []string{"same day", "same day in utc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(headlinesOn(items, date, tt.now)))
		})
	}
}

func TestCollect_BackdatedSkipsTodaysScrape(t *testing.T) {
	c := New(Config{BatchSize: 10}, Sources{
		Indices:  []sources.IndexSource{fakeIndex{ok: true}},
		Universe: []sources.UniverseSource{fakeUniverse{listings: listings(3)}},
		Quotes:   &fakeQuotes{},
		News:     fakeNews{ok: true},
	}, zerolog.Nop())
	c.SetMemoryProbe(fixedProbe(10))
	c.now = func() time.Time { return testDate.AddDate(0, 0, 3) }

	earlier := testDate.AddDate(0, 0, -2)
	out, err := c.Collect(context.Background(), earlier)
	require.NoError(t, err)
	assert.NotNil(t, out.Headlines)
	assert.Empty(t, out.Headlines)
}

func TestCollect_BatchFailureAborts(t *testing.T) {
	c := New(Config{BatchSize: 10, MaxParallel: 2}, Sources{
		Universe: []sources.UniverseSource{fakeUniverse{listings: listings(40)}},
		Quotes:   &fakeQuotes{failOn: "000025"},
	}, zerolog.Nop())
	c.SetMemoryProbe(fixedProbe(10))

	out, err := c.Collect(context.Background(), testDate)
	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBatchFailed))
}

func TestCollect_UniverseUnavailableDegrades(t *testing.T) {
	c := New(Config{}, Sources{
		Indices:  []sources.IndexSource{fakeIndex{ok: false}},
		Universe: []sources.UniverseSource{fakeUniverse{}},
		Quotes:   &fakeQuotes{},
		News:     fakeNews{ok: false},
	}, zerolog.Nop())

	out, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	assert.Nil(t, out.Snapshot)
	assert.True(t, out.Degraded)
	assert.Contains(t, out.DegradedReason, "universe down")
	assert.Equal(t, domain.IndexSourceFallback, out.Indices.Source)
	assert.NotNil(t, out.Headlines)
	assert.Empty(t, out.Headlines)
	assert.Nil(t, out.Flows)
	assert.Empty(t, out.Hourly)
}

func TestCollect_SecondUniverseSourceUsed(t *testing.T) {
	c := New(Config{BatchSize: 500}, Sources{
		Universe: []sources.UniverseSource{fakeUniverse{}, fakeUniverse{listings: listings(3)}},
		Quotes:   &fakeQuotes{},
	}, zerolog.Nop())
	c.SetMemoryProbe(fixedProbe(10))

	out, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	require.NotNil(t, out.Snapshot)
	assert.Len(t, out.Snapshot.Records, 3)
}

func TestCollect_HighMemoryRunsSequentially(t *testing.T) {
	quotes := &fakeQuotes{delay: 2 * time.Millisecond}
	c := New(Config{BatchSize: 2, MaxParallel: 8}, Sources{
		Universe: []sources.UniverseSource{fakeUniverse{listings: listings(12)}},
		Quotes:   quotes,
	}, zerolog.Nop())
	c.SetMemoryProbe(fixedProbe(95))

	_, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&quotes.peak))
}

func TestCollect_UsesSnapshotCache(t *testing.T) {
	dir := t.TempDir()
	quotes := &fakeQuotes{}
	c := New(Config{BatchSize: 10, CacheDir: dir}, Sources{
		Universe: []sources.UniverseSource{fakeUniverse{listings: listings(5)}},
		Quotes:   quotes,
	}, zerolog.Nop())
	c.SetMemoryProbe(fixedProbe(10))

	first, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, quotes.batches, 1)

	second, err := c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, quotes.batches, 1, "second collect is served from cache")
	assert.Equal(t, first.Snapshot.Records, second.Snapshot.Records)

	require.NoError(t, c.Invalidate(testDate))
	_, err = c.Collect(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, quotes.batches, 2)
}
