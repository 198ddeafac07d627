// Package domain provides core domain models and types.
package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrDuplicateTicker is returned when a snapshot lists the same ticker twice
var ErrDuplicateTicker = errors.New("duplicate ticker in snapshot")

// VolumeSurgeShares is the absolute volume above which a stock is flagged as surging
const VolumeSurgeShares = 1_000_000

// Market identifies one of the two Korean exchanges covered by the report
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// StockRecord is one ticker's end-of-day quote
type StockRecord struct {
	Ticker        string  `json:"ticker" msgpack:"ticker"`
	Name          string  `json:"name" msgpack:"name"`
	Market        Market  `json:"market,omitempty" msgpack:"market"`
	CurrentPrice  int64   `json:"current_price" msgpack:"current_price"`
	PreviousPrice int64   `json:"previous_price" msgpack:"previous_price"`
	ChangeRate    float64 `json:"change_rate" msgpack:"change_rate"`
	Volume        int64   `json:"volume" msgpack:"volume"`
}

// NewStockRecord builds a record and derives its change rate from the two prices
func NewStockRecord(ticker, name string, current, previous, volume int64) StockRecord {
	return StockRecord{
		Ticker:        ticker,
		Name:          name,
		CurrentPrice:  current,
		PreviousPrice: previous,
		ChangeRate:    ChangeRate(current, previous),
		Volume:        volume,
	}
}

// ChangeRate returns the percentage change from previous to current.
// A non-positive previous price yields 0.
func ChangeRate(current, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// MarketSnapshot is the complete set of records for one date
type MarketSnapshot struct {
	Date    string        `json:"date" msgpack:"date"` // YYYY-MM-DD
	Records []StockRecord `json:"records" msgpack:"records"`
}

// Validate checks that every ticker appears at most once
func (s MarketSnapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Records))
	for _, r := range s.Records {
		if _, ok := seen[r.Ticker]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTicker, r.Ticker)
		}
		seen[r.Ticker] = struct{}{}
	}
	return nil
}

// Len returns the number of records
func (s MarketSnapshot) Len() int {
	return len(s.Records)
}

// ClassifiedStock is a record annotated by the analysis engine
type ClassifiedStock struct {
	StockRecord
	Sector      string `json:"sector"`
	VolumeSurge bool   `json:"volume_surge"`
	Reason      string `json:"reason"`
}

// SectorPerformance aggregates every snapshot member of one sector
type SectorPerformance struct {
	Sector        string        `json:"sector"`
	MegaSector    string        `json:"mega_sector"`
	Stocks        []StockRecord `json:"stocks"`
	AvgChangeRate float64       `json:"avg_change_rate"`
	TotalVolume   int64         `json:"total_volume"`
}

// ThemeKind records how a theme's members were grouped
type ThemeKind string

const (
	ThemeKindSector  ThemeKind = "sector"
	ThemeKindKeyword ThemeKind = "keyword"
)

// Theme is a cluster of at least two surging stocks
type Theme struct {
	Name                 string            `json:"theme"`
	Kind                 ThemeKind         `json:"kind"`
	MegaSector           string            `json:"mega_sector"`
	StockCount           int               `json:"stock_count"`
	AvgChangeRate        float64           `json:"avg_change_rate"`
	TotalVolume          int64             `json:"total_volume"`
	RepresentativeStocks []ClassifiedStock `json:"representative_stocks"`
	Description          string            `json:"description"`
}

// Score is the ordering key for themes: average move weighted by breadth
func (t Theme) Score() float64 {
	return t.AvgChangeRate * float64(t.StockCount)
}

// Mood is the categorical market sentiment
type Mood string

const (
	MoodStrongBull Mood = "strong_bull"
	MoodMildBull   Mood = "mild_bull"
	MoodStrongBear Mood = "strong_bear"
	MoodMildBear   Mood = "mild_bear"
	MoodFlat       Mood = "flat"
)

// Label returns the Korean display label
func (m Mood) Label() string {
	switch m {
	case MoodStrongBull:
		return "강세"
	case MoodMildBull:
		return "보합강세"
	case MoodStrongBear:
		return "약세"
	case MoodMildBear:
		return "보합약세"
	default:
		return "보합"
	}
}

// MarketSentiment is the aggregate breadth of one snapshot
type MarketSentiment struct {
	TotalStocks     int     `json:"total_stocks"`
	RisingStocks    int     `json:"rising_stocks"`
	FallingStocks   int     `json:"falling_stocks"`
	UnchangedStocks int     `json:"unchanged_stocks"`
	RisingRatio     float64 `json:"rising_ratio"`
	FallingRatio    float64 `json:"falling_ratio"`
	AvgChangeRate   float64 `json:"avg_change_rate"`
	Mood            Mood    `json:"market_mood"`
}

// Round rounds v half away from zero to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
