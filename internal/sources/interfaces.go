package sources

import (
	"context"
	"time"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

// IndexSource provides KOSPI/KOSDAQ closes for a date
type IndexSource interface {
	Indices(ctx context.Context, date time.Time) Result[domain.MarketIndices]
}

// UniverseSource lists every ticker traded on a date
type UniverseSource interface {
	Universe(ctx context.Context, date time.Time) Result[[]domain.Listing]
}

// QuoteSource fetches end-of-day quotes for one batch of tickers.
// Unlike the other sources a batch failure is an error: a partial
// universe must never be analyzed.
type QuoteSource interface {
	Quotes(ctx context.Context, date time.Time, batch []domain.Listing) ([]domain.StockRecord, error)
}

// FlowSource provides daily net buying by investor type
type FlowSource interface {
	InvestorFlows(ctx context.Context, date time.Time) Result[domain.InvestorFlows]
}

// NewsSource provides the day's market headlines
type NewsSource interface {
	Headlines(ctx context.Context, limit int) Result[[]domain.Headline]
}

// IndexChain builds the index fallback chain: each source in order, then a
// zeroed payload so the chain always yields a value.
func IndexChain(date time.Time, srcs ...IndexSource) []Attempt[domain.MarketIndices] {
	attempts := make([]Attempt[domain.MarketIndices], 0, len(srcs)+1)
	for i, s := range srcs {
		s := s
		attempts = append(attempts, Attempt[domain.MarketIndices]{
			Name: sourceName(s, i),
			Fetch: func(ctx context.Context) Result[domain.MarketIndices] {
				return s.Indices(ctx, date)
			},
		})
	}
	return append(attempts, Static(domain.IndexSourceFallback, domain.ZeroIndices(date.Format("2006-01-02"))))
}

// Named is implemented by sources that identify themselves in logs
type Named interface {
	Name() string
}

func sourceName(s any, i int) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "source-" + string(rune('a'+i))
}
