package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

const (
	maxThemeHighlights = 5
	momentumThreshold  = 1.0 // KOSPI move (%) that earns a follow-up item
)

var defaultHighlights = []string{
	"개별 종목들의 혼조세가 지속되었습니다.",
	"거래량은 평소 수준을 유지했습니다.",
	"특별한 테마주 움직임은 관찰되지 않았습니다.",
}

// MarketSummary describes the session close and breadth in a short paragraph
func MarketSummary(res *domain.AnalysisResult) string {
	kospi := res.Indices.KOSPI.ChangeRate
	kosdaq := res.Indices.KOSDAQ.ChangeRate

	trend := "혼조세"
	switch {
	case kospi > 0 && kosdaq > 0:
		trend = "상승세"
	case kospi < 0 && kosdaq < 0:
		trend = "하락세"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "국내 증시는 %s로 마감했습니다. KOSPI는 전일 대비 %s, KOSDAQ은 %s를 기록했습니다.",
		trend, FormatChangeRate(kospi), FormatChangeRate(kosdaq))

	s := res.Sentiment
	if s.TotalStocks > 0 {
		fmt.Fprintf(&b, " 전체 %d종목 중 %d종목이 상승하고 %d종목이 하락해 시장 분위기는 %s입니다.",
			s.TotalStocks, s.RisingStocks, s.FallingStocks, s.Mood.Label())
	}

	if res.Flows != nil {
		flows := res.Flows.KOSPI.Normalize()
		foreign := flows[domain.InvestorForeign]
		inst := flows[domain.InvestorInstitution]
		indiv := flows[domain.InvestorIndividual]
		switch {
		case foreign > 0 && inst > 0:
			b.WriteString(" 외국인과 기관이 동반 순매수하며 지수를 뒷받침했습니다.")
		case foreign < 0 && inst < 0:
			b.WriteString(" 외국인과 기관의 동반 순매도가 지수에 부담을 줬습니다.")
		case indiv > 0:
			fmt.Fprintf(&b, " 개인이 %s 순매수한 가운데 외국인 %s, 기관 %s를 기록했습니다.",
				FormatEok(indiv), FormatEok(foreign), FormatEok(inst))
		}
	}

	if res.Degraded {
		b.WriteString(" 일부 데이터를 수집하지 못해 지수 중심으로 작성되었습니다.")
	}
	return b.String()
}

// Highlights lists the notable moves of the day
func Highlights(res *domain.AnalysisResult) []string {
	var out []string

	for i, t := range res.Themes {
		if i == maxThemeHighlights {
			break
		}
		out = append(out, fmt.Sprintf("%s 관련주들이 %.1f%% 상승하며 주목받았습니다.", t.Name, t.AvgChangeRate))
	}
	if len(res.Surge) > 0 {
		top := res.Surge[0]
		out = append(out, fmt.Sprintf("%s%s %.1f%% 급등하며 상승률 1위를 기록했습니다.",
			top.Name, josa(top.Name, "이", "가"), top.ChangeRate))
	}
	if len(res.Plunge) > 0 {
		top := res.Plunge[0]
		out = append(out, fmt.Sprintf("%s%s %.1f%% 급락했습니다.",
			top.Name, josa(top.Name, "은", "는"), math.Abs(top.ChangeRate)))
	}

	if len(out) == 0 {
		return append([]string(nil), defaultHighlights...)
	}
	return out
}

// Homework lists what to check before the next session. It may be empty.
func Homework(res *domain.AnalysisResult) []string {
	var out []string
	if len(res.Themes) > 0 {
		out = append(out, fmt.Sprintf("%s 관련주들의 추가 상승 여부 확인", res.Themes[0].Name))
	}

	kospi := res.Indices.KOSPI.ChangeRate
	switch {
	case kospi > momentumThreshold:
		out = append(out, "상승 모멘텀 지속 가능성 점검")
	case kospi < -momentumThreshold:
		out = append(out, "추가 하락 위험 모니터링")
	}

	if len(res.Plunge) > 0 && res.Plunge[0].ChangeRate <= -20 {
		out = append(out, fmt.Sprintf("%s 급락 사유(공시·뉴스) 확인", res.Plunge[0].Name))
	}
	return out
}
