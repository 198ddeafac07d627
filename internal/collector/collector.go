// Package collector gathers everything one report needs for a date: index
// closes, the full quote universe in bounded batches, investor flows and
// headlines.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/sources"
)

// ErrBatchFailed wraps any quote batch failure; the whole collection is aborted
var ErrBatchFailed = errors.New("quote batch failed")

// Config bounds the collection
type Config struct {
	BatchSize    int
	MaxParallel  int
	MaxHeadlines int
	CacheDir     string // "" disables the msgpack snapshot cache
}

// Sources are the upstream collaborators. Index and universe sources are
// tried in order; Flows and News are optional.
type Sources struct {
	Indices  []sources.IndexSource
	Universe []sources.UniverseSource
	Quotes   sources.QuoteSource
	Flows    sources.FlowSource
	News     sources.NewsSource
}

// Collection is the raw input of one analysis pass
type Collection struct {
	Indices        domain.MarketIndices
	Snapshot       *domain.MarketSnapshot // nil when the universe was unavailable
	Flows          *domain.InvestorFlows
	Hourly         []domain.HourlyFlow
	Headlines      []domain.Headline
	Degraded       bool
	DegradedReason string
}

// Collector runs the collect step of the pipeline
type Collector struct {
	cfg    Config
	src    Sources
	hourly sources.SyntheticHourly
	cache  *SnapshotCache
	probe  MemoryProbe
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a collector
func New(cfg Config, src Sources, log zerolog.Logger) *Collector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	c := &Collector{
		cfg:   cfg,
		src:   src,
		probe: VirtualMemoryProbe{},
		now:   time.Now,
		log:   log.With().Str("component", "collector").Logger(),
	}
	if cfg.CacheDir != "" {
		c.cache = NewSnapshotCache(cfg.CacheDir)
	}
	return c
}

// SetMemoryProbe replaces the memory probe
func (c *Collector) SetMemoryProbe(p MemoryProbe) {
	c.probe = p
}

// Collect gathers all inputs for date. An unavailable universe degrades the
// result to indices only; a failing quote batch aborts with an error.
func (c *Collector) Collect(ctx context.Context, date time.Time) (*Collection, error) {
	isoDate := date.Format("2006-01-02")
	out := &Collection{}

	idx := sources.FirstAvailable(ctx, sources.IndexChain(date, c.src.Indices...)...)
	out.Indices, _ = idx.Value()
	if idx.Source() == domain.IndexSourceFallback {
		c.log.Warn().Str("date", isoDate).Msg("All index sources unavailable, using zeroed indices")
	}

	snapshot, degradedReason, err := c.collectSnapshot(ctx, date)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		out.Degraded = true
		out.DegradedReason = degradedReason
		c.log.Warn().Str("date", isoDate).Str("reason", degradedReason).Msg("Universe unavailable, producing index-only report")
	}
	out.Snapshot = snapshot

	if c.src.Flows != nil {
		if flows, ok := c.src.Flows.InvestorFlows(ctx, date).Value(); ok {
			out.Flows = &flows
		} else {
			c.log.Warn().Str("date", isoDate).Msg("Investor flows unavailable")
		}
	}
	if out.Flows != nil {
		out.Hourly = c.hourly.Estimate(date, out.Flows)
	}

	out.Headlines = []domain.Headline{}
	if c.src.News != nil {
		res := c.src.News.Headlines(ctx, c.cfg.MaxHeadlines)
		if items, ok := res.Value(); ok {
			out.Headlines = headlinesOn(items, date, c.now())
			if dropped := len(items) - len(out.Headlines); dropped > 0 {
				c.log.Debug().Str("date", isoDate).Int("dropped", dropped).Msg("Skipped headlines from other days")
			}
		} else {
			c.log.Warn().Str("reason", res.Reason()).Msg("Headlines unavailable, continuing without news")
		}
	}

	return out, nil
}

func (c *Collector) collectSnapshot(ctx context.Context, date time.Time) (*domain.MarketSnapshot, string, error) {
	isoDate := date.Format("2006-01-02")

	if c.cache != nil {
		if snap, err := c.cache.Load(date); err == nil {
			c.log.Info().Str("date", isoDate).Int("stocks", snap.Len()).Msg("Using cached snapshot")
			return snap, "", nil
		} else if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn().Err(err).Msg("Ignoring unreadable snapshot cache")
		}
	}

	attempts := make([]sources.Attempt[[]domain.Listing], 0, len(c.src.Universe))
	for i, u := range c.src.Universe {
		u := u
		attempts = append(attempts, sources.Attempt[[]domain.Listing]{
			Name:  fmt.Sprintf("universe-%d", i),
			Fetch: func(ctx context.Context) sources.Result[[]domain.Listing] { return u.Universe(ctx, date) },
		})
	}
	uni := sources.FirstAvailable(ctx, attempts...)
	listings, ok := uni.Value()
	if !ok {
		return nil, uni.Reason(), nil
	}
	if c.src.Quotes == nil {
		return nil, "no quote source configured", nil
	}

	records, err := c.fetchBatches(ctx, date, listings)
	if err != nil {
		return nil, "", err
	}

	snap := &domain.MarketSnapshot{Date: isoDate, Records: records}
	if c.cache != nil {
		if err := c.cache.Save(date, snap); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache snapshot")
		}
	}
	return snap, "", nil
}

// fetchBatches fetches listings in fixed-size batches, possibly in parallel.
// Results are stored by batch index so the output keeps universe order.
func (c *Collector) fetchBatches(ctx context.Context, date time.Time, listings []domain.Listing) ([]domain.StockRecord, error) {
	batches := chunk(listings, c.cfg.BatchSize)
	results := make([][]domain.StockRecord, len(batches))

	parallel := c.parallelism()
	c.log.Info().
		Int("tickers", len(listings)).
		Int("batches", len(batches)).
		Int("parallel", parallel).
		Msg("Collecting quotes")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			recs, err := c.src.Quotes.Quotes(gctx, date, batch)
			if err != nil {
				return fmt.Errorf("%w: batch %d/%d: %v", ErrBatchFailed, i+1, len(batches), err)
			}
			results[i] = recs
			c.log.Debug().Int("batch", i+1).Int("records", len(recs)).Msg("Batch collected")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]domain.StockRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (c *Collector) parallelism() int {
	p := c.cfg.MaxParallel
	if c.probe == nil {
		return p
	}
	used, err := c.probe.UsedPercent()
	if err != nil {
		c.log.Debug().Err(err).Msg("Memory probe failed")
		return p
	}
	if used >= highMemoryPercent && p > 1 {
		c.log.Warn().Float64("memory_used_pct", used).Msg("High memory usage, collecting sequentially")
		return 1
	}
	return p
}

func chunk(items []domain.Listing, size int) [][]domain.Listing {
	var out [][]domain.Listing
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// Invalidate drops the cached snapshot for date so the next Collect refetches
func (c *Collector) Invalidate(date time.Time) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Remove(date)
}

// headlinesOn keeps the headlines published on date's calendar day.
// Undated items are kept only when date is today, since the scrape reflects
// the current front page.
func headlinesOn(items []domain.Headline, date, now time.Time) []domain.Headline {
	loc := date.Location()
	day := date.Format("2006-01-02")
	today := now.In(loc).Format("2006-01-02") == day

	out := make([]domain.Headline, 0, len(items))
	for _, h := range items {
		if h.PublishedAt.IsZero() {
			if today {
				out = append(out, h)
			}
			continue
		}
		if h.PublishedAt.In(loc).Format("2006-01-02") == day {
			out = append(out, h)
		}
	}
	return out
}
