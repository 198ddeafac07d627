package report

import (
	"time"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

type hourlyRow struct {
	Slot         string
	KOSPIChange  float64
	KOSDAQChange float64
	Investors    []float64 // KOSPI net buying in domain.StandardInvestorTypes order
}

type reportView struct {
	Title          string
	Date           string
	KoreanDate     string
	GeneratedAt    string
	Degraded       bool
	DegradedReason string
	Indices        domain.MarketIndices
	Summary        string
	Highlights     []string
	Homework       []string
	Hourly         []hourlyRow
	Themes         []domain.Theme
	Surge          []domain.ClassifiedStock
	Plunge         []domain.ClassifiedStock
	VolumeLeaders  []domain.StockRecord
	Sectors        []domain.SectorPerformance
	Headlines      []domain.Headline
	Sentiment      domain.MarketSentiment
}

func (r *Renderer) buildView(res *domain.AnalysisResult, date time.Time) *reportView {
	generated := res.GeneratedAt
	if generated.IsZero() {
		generated = r.now()
	}

	v := &reportView{
		Title:          "한국 증시 일일 리포트",
		Date:           res.ReportDate,
		KoreanDate:     KoreanDate(date),
		GeneratedAt:    generated.In(r.loc).Format("2006-01-02 15:04:05"),
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		Indices:        res.Indices,
		Summary:        MarketSummary(res),
		Highlights:     Highlights(res),
		Homework:       Homework(res),
		Themes:         res.Themes,
		Surge:          res.Surge,
		Plunge:         res.Plunge,
		VolumeLeaders:  res.VolumeLeaders,
		Sectors:        res.Sectors,
		Headlines:      res.Headlines,
		Sentiment:      res.Sentiment,
	}

	for _, h := range res.HourlyFlows {
		row := hourlyRow{Slot: h.Slot, KOSPIChange: h.KOSPIChange, KOSDAQChange: h.KOSDAQChange}
		flows := h.KOSPI.Normalize()
		for _, t := range domain.StandardInvestorTypes {
			row.Investors = append(row.Investors, flows[t])
		}
		v.Hourly = append(v.Hourly, row)
	}
	return v
}
