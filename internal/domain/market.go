package domain

import "time"

// IndexQuote is one index's close against the previous close
type IndexQuote struct {
	Current    float64 `json:"current"`
	Previous   float64 `json:"previous"`
	ChangeRate float64 `json:"change_rate"`
}

// NewIndexQuote derives the change rate of an index quote
func NewIndexQuote(current, previous float64) IndexQuote {
	q := IndexQuote{Current: current, Previous: previous}
	if previous > 0 {
		q.ChangeRate = Round((current-previous)/previous*100, 2)
	}
	return q
}

// IndexSourceFallback marks the zeroed last-resort index payload
const IndexSourceFallback = "fallback"

// MarketIndices is the two-field index payload
type MarketIndices struct {
	Date   string     `json:"date"`
	KOSPI  IndexQuote `json:"kospi"`
	KOSDAQ IndexQuote `json:"kosdaq"`
	Source string     `json:"source"`
}

// ZeroIndices returns the zeroed payload used when every index source is down
func ZeroIndices(date string) MarketIndices {
	return MarketIndices{Date: date, Source: IndexSourceFallback}
}

// InvestorType names a class of market participant
type InvestorType string

const (
	InvestorIndividual   InvestorType = "개인"
	InvestorForeign      InvestorType = "외국인"
	InvestorInstitution  InvestorType = "기관계"
	InvestorFinancialInv InvestorType = "금융투자"
	InvestorInvestTrust  InvestorType = "투신"
	InvestorPensionFund  InvestorType = "연기금"
)

// StandardInvestorTypes are always present in a flow breakdown
var StandardInvestorTypes = []InvestorType{
	InvestorIndividual,
	InvestorForeign,
	InvestorInstitution,
	InvestorFinancialInv,
	InvestorInvestTrust,
	InvestorPensionFund,
}

// NetBuying maps investor type to net buying in 억원
type NetBuying map[InvestorType]float64

// Normalize fills missing standard investor types with zero
func (n NetBuying) Normalize() NetBuying {
	out := make(NetBuying, len(n)+len(StandardInvestorTypes))
	for k, v := range n {
		out[k] = v
	}
	for _, t := range StandardInvestorTypes {
		if _, ok := out[t]; !ok {
			out[t] = 0
		}
	}
	return out
}

// InvestorFlows is the daily net buying per market
type InvestorFlows struct {
	Date   string    `json:"date"`
	KOSPI  NetBuying `json:"kospi"`
	KOSDAQ NetBuying `json:"kosdaq"`
}

// HourlyFlow is one intraday slot of the estimated flow distribution.
// Synthetic is true whenever the figures are estimates rather than measurements.
type HourlyFlow struct {
	Slot         string    `json:"slot"` // HH:MM
	KOSPI        NetBuying `json:"kospi"`
	KOSDAQ       NetBuying `json:"kosdaq"`
	KOSPIChange  float64   `json:"kospi_change"`
	KOSDAQChange float64   `json:"kosdaq_change"`
	Synthetic    bool      `json:"synthetic"`
}

// HourlySlots are the intraday checkpoints of the flow table
var HourlySlots = []string{"09:30", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "15:30"}

// Headline is one scraped news item
type Headline struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Press       string    `json:"press,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Source      string    `json:"source"`
}

// AnalysisResult is the rendering input and the body of the JSON backup
type AnalysisResult struct {
	ReportDate     string              `json:"report_date"` // YYYY-MM-DD
	GeneratedAt    time.Time           `json:"generated_at"`
	Indices        MarketIndices       `json:"market_indices"`
	Surge          []ClassifiedStock   `json:"surge_stocks"`
	Plunge         []ClassifiedStock   `json:"plunge_stocks"`
	VolumeLeaders  []StockRecord       `json:"volume_surge_stocks"`
	Sectors        []SectorPerformance `json:"sector_performance"`
	Themes         []Theme             `json:"themes"`
	Sentiment      MarketSentiment     `json:"market_sentiment"`
	Flows          *InvestorFlows      `json:"investor_flows,omitempty"`
	HourlyFlows    []HourlyFlow        `json:"hourly_flows,omitempty"`
	Headlines      []Headline          `json:"headlines"`
	Degraded       bool                `json:"degraded"`
	DegradedReason string              `json:"degraded_reason,omitempty"`
}

// Listing is one member of the ticker universe
type Listing struct {
	Ticker string `json:"ticker" msgpack:"ticker"`
	Name   string `json:"name" msgpack:"name"`
	Market Market `json:"market" msgpack:"market"`
}
