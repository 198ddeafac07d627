// Package marketdata provides a client for the end-of-day market data API
// that backs index, universe, quote and investor flow collection.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/sources"
)

const wonPerEok = 100_000_000

// Client is the market data API client.
type Client struct {
	name       string
	baseURL    string
	apiKey     string // Optional
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Config holds client settings
type Config struct {
	Name           string // Label used in logs and fallback reasons
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// NewClient creates a new market data client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	if cfg.Name == "" {
		cfg.Name = "marketdata"
	}
	return &Client{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.With().Str("component", "marketdata").Str("source", cfg.Name).Logger(),
	}
}

// Name identifies the client in fallback chains
func (c *Client) Name() string {
	return c.name
}

// Configured reports whether a base URL is set
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type indexQuote struct {
	Close     float64 `json:"close"`
	PrevClose float64 `json:"prev_close"`
}

type indicesResponse struct {
	KOSPI  *indexQuote `json:"kospi"`
	KOSDAQ *indexQuote `json:"kosdaq"`
}

// Indices fetches the KOSPI and KOSDAQ closes for date
func (c *Client) Indices(ctx context.Context, date time.Time) sources.Result[domain.MarketIndices] {
	if !c.Configured() {
		return sources.Unavailable[domain.MarketIndices]("not configured")
	}

	var resp indicesResponse
	q := url.Values{"date": {date.Format("20060102")}}
	if err := c.get(ctx, "/indices", q, &resp); err != nil {
		return sources.Unavailable[domain.MarketIndices]("%v", err)
	}
	if resp.KOSPI == nil || resp.KOSDAQ == nil {
		return sources.Unavailable[domain.MarketIndices]("incomplete index payload")
	}

	return sources.Ok(domain.MarketIndices{
		Date:   date.Format("2006-01-02"),
		KOSPI:  domain.NewIndexQuote(resp.KOSPI.Close, resp.KOSPI.PrevClose),
		KOSDAQ: domain.NewIndexQuote(resp.KOSDAQ.Close, resp.KOSDAQ.PrevClose),
		Source: c.name,
	})
}

type tickersResponse struct {
	Tickers []struct {
		Ticker string `json:"ticker"`
		Name   string `json:"name"`
	} `json:"tickers"`
}

// Universe lists every KOSPI and KOSDAQ ticker for date, KOSPI first
func (c *Client) Universe(ctx context.Context, date time.Time) sources.Result[[]domain.Listing] {
	if !c.Configured() {
		return sources.Unavailable[[]domain.Listing]("not configured")
	}

	var out []domain.Listing
	for _, market := range []domain.Market{domain.MarketKOSPI, domain.MarketKOSDAQ} {
		var resp tickersResponse
		q := url.Values{"date": {date.Format("20060102")}, "market": {string(market)}}
		if err := c.get(ctx, "/tickers", q, &resp); err != nil {
			return sources.Unavailable[[]domain.Listing]("%s tickers: %v", market, err)
		}
		for _, t := range resp.Tickers {
			out = append(out, domain.Listing{Ticker: t.Ticker, Name: t.Name, Market: market})
		}
	}

	if len(out) == 0 {
		return sources.Unavailable[[]domain.Listing]("empty universe for %s", date.Format("2006-01-02"))
	}

	c.log.Debug().Int("tickers", len(out)).Msg("Universe fetched")
	return sources.Ok(out)
}

type quotesRequest struct {
	Date    string   `json:"date"`
	Tickers []string `json:"tickers"`
}

type quote struct {
	Ticker    string `json:"ticker"`
	Name      string `json:"name"`
	Close     int64  `json:"close"`
	PrevClose int64  `json:"prev_close"`
	Volume    int64  `json:"volume"`
}

type quotesResponse struct {
	Quotes []quote `json:"quotes"`
}

// Quotes fetches one batch of end-of-day quotes. Results follow batch order;
// tickers the API does not return (halted or delisted) are skipped.
func (c *Client) Quotes(ctx context.Context, date time.Time, batch []domain.Listing) ([]domain.StockRecord, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%s: not configured", c.name)
	}

	req := quotesRequest{Date: date.Format("20060102"), Tickers: make([]string, len(batch))}
	for i, l := range batch {
		req.Tickers[i] = l.Ticker
	}

	var resp quotesResponse
	if err := c.post(ctx, "/quotes", req, &resp); err != nil {
		return nil, fmt.Errorf("%s quotes: %w", c.name, err)
	}

	byTicker := make(map[string]quote, len(resp.Quotes))
	for _, q := range resp.Quotes {
		byTicker[q.Ticker] = q
	}

	out := make([]domain.StockRecord, 0, len(batch))
	for _, l := range batch {
		q, ok := byTicker[l.Ticker]
		if !ok {
			continue
		}
		name := q.Name
		if name == "" {
			name = l.Name
		}
		r := domain.NewStockRecord(l.Ticker, name, q.Close, q.PrevClose, q.Volume)
		r.Market = l.Market
		out = append(out, r)
	}

	if skipped := len(batch) - len(out); skipped > 0 {
		c.log.Debug().Int("skipped", skipped).Int("batch", len(batch)).Msg("Tickers missing from quote response")
	}
	return out, nil
}

type investorsResponse struct {
	NetBuying map[string]float64 `json:"net_buying"` // 원
}

// InvestorFlows fetches net buying per investor type for both markets
func (c *Client) InvestorFlows(ctx context.Context, date time.Time) sources.Result[domain.InvestorFlows] {
	if !c.Configured() {
		return sources.Unavailable[domain.InvestorFlows]("not configured")
	}

	flows := domain.InvestorFlows{Date: date.Format("2006-01-02")}
	for _, market := range []domain.Market{domain.MarketKOSPI, domain.MarketKOSDAQ} {
		var resp investorsResponse
		q := url.Values{"date": {date.Format("20060102")}, "market": {string(market)}}
		if err := c.get(ctx, "/investors", q, &resp); err != nil {
			return sources.Unavailable[domain.InvestorFlows]("%s investors: %v", market, err)
		}
		nb := NormalizeInvestors(resp.NetBuying)
		if market == domain.MarketKOSPI {
			flows.KOSPI = nb
		} else {
			flows.KOSDAQ = nb
		}
	}
	return sources.Ok(flows)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
