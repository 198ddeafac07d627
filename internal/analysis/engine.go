// Package analysis turns a market snapshot into ranked movers, sector
// performance, themes and a sentiment score. Every operation is a pure
// function of its inputs; nothing here performs I/O.
package analysis

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
	"github.com/Thetason/korean-stock-daily-report/internal/sectors"
)

// SectorLookup resolves a stock's sector label. Implementations must not fail;
// unknown stocks resolve to a default label.
type SectorLookup interface {
	Sector(ticker, name string) string
}

// Thresholds bound the classification lists
type Thresholds struct {
	Surge      float64 // minimum change rate (%) for the surge list
	Plunge     float64 // maximum change rate (%) for the plunge list
	MaxSurge   int
	MaxPlunge  int
	VolumeTopN int
}

// DefaultThresholds returns ±5% with 50 surge, 30 plunge and 20 volume entries
func DefaultThresholds() Thresholds {
	return Thresholds{
		Surge:      5.0,
		Plunge:     -5.0,
		MaxSurge:   50,
		MaxPlunge:  30,
		VolumeTopN: 20,
	}
}

// Engine is the market analysis engine
type Engine struct {
	th      Thresholds
	lookup  SectorLookup
	keyword []sectors.KeywordTheme
	log     zerolog.Logger
}

// NewEngine creates an engine. A nil keyword table uses the built-in themes.
func NewEngine(th Thresholds, lookup SectorLookup, keywordThemes []sectors.KeywordTheme, log zerolog.Logger) *Engine {
	if keywordThemes == nil {
		keywordThemes = sectors.DefaultKeywordThemes()
	}
	return &Engine{
		th:      th,
		lookup:  lookup,
		keyword: keywordThemes,
		log:     log.With().Str("component", "analysis_engine").Logger(),
	}
}

// Result groups every output of one analysis pass
type Result struct {
	Surge         []domain.ClassifiedStock
	Plunge        []domain.ClassifiedStock
	VolumeLeaders []domain.StockRecord
	Sectors       []domain.SectorPerformance
	Themes        []domain.Theme
	Sentiment     domain.MarketSentiment
}

// Analyze validates the snapshot and runs every operation on it.
// Duplicate tickers fail the whole pass.
func (e *Engine) Analyze(snapshot domain.MarketSnapshot) (*Result, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot for %s: %w", snapshot.Date, err)
	}

	surge := e.ClassifySurge(snapshot)
	res := &Result{
		Surge:         surge,
		Plunge:        e.ClassifyPlunge(snapshot),
		VolumeLeaders: e.ClassifyVolumeSurge(snapshot),
		Sectors:       e.AnalyzeSectorPerformance(snapshot),
		Themes:        IdentifyThemes(surge, e.keyword),
		Sentiment:     CalculateSentiment(snapshot),
	}

	e.log.Info().
		Str("date", snapshot.Date).
		Int("stocks", snapshot.Len()).
		Int("surge", len(res.Surge)).
		Int("plunge", len(res.Plunge)).
		Int("sectors", len(res.Sectors)).
		Int("themes", len(res.Themes)).
		Str("mood", string(res.Sentiment.Mood)).
		Msg("Snapshot analyzed")

	return res, nil
}

// ClassifySurge returns records at or above the surge threshold, strongest first
func (e *Engine) ClassifySurge(snapshot domain.MarketSnapshot) []domain.ClassifiedStock {
	picked := filterRecords(snapshot.Records, func(r domain.StockRecord) bool {
		return r.ChangeRate >= e.th.Surge
	})
	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].ChangeRate != picked[j].ChangeRate {
			return picked[i].ChangeRate > picked[j].ChangeRate
		}
		return picked[i].Ticker < picked[j].Ticker
	})
	return e.classify(limit(picked, e.th.MaxSurge), surgeReason)
}

// ClassifyPlunge returns records at or below the plunge threshold, weakest first
func (e *Engine) ClassifyPlunge(snapshot domain.MarketSnapshot) []domain.ClassifiedStock {
	picked := filterRecords(snapshot.Records, func(r domain.StockRecord) bool {
		return r.ChangeRate <= e.th.Plunge
	})
	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].ChangeRate != picked[j].ChangeRate {
			return picked[i].ChangeRate < picked[j].ChangeRate
		}
		return picked[i].Ticker < picked[j].Ticker
	})
	return e.classify(limit(picked, e.th.MaxPlunge), plungeReason)
}

// ClassifyVolumeSurge ranks traded records by raw volume. This is a same-day
// relative ranking; a true day-over-day ratio would need the previous
// session's per-ticker volume.
func (e *Engine) ClassifyVolumeSurge(snapshot domain.MarketSnapshot) []domain.StockRecord {
	picked := filterRecords(snapshot.Records, func(r domain.StockRecord) bool {
		return r.Volume > 0
	})
	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].Volume != picked[j].Volume {
			return picked[i].Volume > picked[j].Volume
		}
		return picked[i].Ticker < picked[j].Ticker
	})
	picked = limit(picked, e.th.VolumeTopN)
	for i := range picked {
		picked[i].ChangeRate = domain.Round(picked[i].ChangeRate, 2)
	}
	return picked
}

// AnalyzeSectorPerformance groups every record by sector, best average first
func (e *Engine) AnalyzeSectorPerformance(snapshot domain.MarketSnapshot) []domain.SectorPerformance {
	if snapshot.Len() == 0 {
		return []domain.SectorPerformance{}
	}

	index := make(map[string]int)
	var groups []domain.SectorPerformance
	var rates [][]float64

	for _, r := range snapshot.Records {
		name := e.sectorOf(r)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, domain.SectorPerformance{
				Sector:     name,
				MegaSector: sectors.MegaSector(name),
			})
			rates = append(rates, nil)
		}
		groups[i].Stocks = append(groups[i].Stocks, r)
		groups[i].TotalVolume += r.Volume
		rates[i] = append(rates[i], r.ChangeRate)
	}

	for i := range groups {
		groups[i].AvgChangeRate = domain.Round(mean(rates[i]), 2)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].AvgChangeRate != groups[j].AvgChangeRate {
			return groups[i].AvgChangeRate > groups[j].AvgChangeRate
		}
		return groups[i].Sector < groups[j].Sector
	})
	return groups
}

func (e *Engine) classify(records []domain.StockRecord, reason func(float64) string) []domain.ClassifiedStock {
	out := make([]domain.ClassifiedStock, 0, len(records))
	for _, r := range records {
		rate := r.ChangeRate
		r.ChangeRate = domain.Round(rate, 2)
		out = append(out, domain.ClassifiedStock{
			StockRecord: r,
			Sector:      e.sectorOf(r),
			VolumeSurge: r.Volume > domain.VolumeSurgeShares,
			Reason:      reason(rate),
		})
	}
	return out
}

func (e *Engine) sectorOf(r domain.StockRecord) string {
	if e.lookup == nil {
		return sectors.SectorOther
	}
	s := e.lookup.Sector(r.Ticker, r.Name)
	if s == "" {
		return sectors.SectorOther
	}
	return s
}

func surgeReason(rate float64) string {
	switch {
	case rate > 20:
		return "급등 / 재료 발생 의심"
	case rate > 10:
		return "강세 / 시장 주목"
	default:
		return "상승 / 매수세 유입"
	}
}

func plungeReason(rate float64) string {
	switch {
	case rate < -20:
		return "급락 / 악재 발생 의심"
	case rate < -10:
		return "약세 / 매도 압력"
	default:
		return "하락 / 조정"
	}
}

// filterRecords copies matching records so sorting never touches the snapshot
func filterRecords(records []domain.StockRecord, keep func(domain.StockRecord) bool) []domain.StockRecord {
	out := make([]domain.StockRecord, 0)
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func limit[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
