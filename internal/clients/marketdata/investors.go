package marketdata

import (
	"strings"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

// Vendor labels vary between feeds; the first matching variation wins.
var investorVariations = []struct {
	std        domain.InvestorType
	variations []string
}{
	{domain.InvestorIndividual, []string{"개인"}},
	{domain.InvestorForeign, []string{"외국인"}},
	{domain.InvestorInstitution, []string{"기관합계", "기관"}},
	{domain.InvestorFinancialInv, []string{"금융투자", "증권"}},
	{domain.InvestorInvestTrust, []string{"투신"}},
	{domain.InvestorPensionFund, []string{"연기금 등", "연기금", "국민연금"}},
	{"보험", []string{"보험"}},
	{"사모", []string{"사모"}},
}

var skippedInvestors = map[string]bool{"전체": true, "기타외국인": true}

// NormalizeInvestors converts vendor rows in 원 to standard types in 억원.
// Unknown labels are kept as-is and missing standard types are zero-filled.
func NormalizeInvestors(raw map[string]float64) domain.NetBuying {
	out := make(domain.NetBuying)
	for label, won := range raw {
		if skippedInvestors[label] {
			continue
		}
		key := domain.InvestorType(label)
		for _, m := range investorVariations {
			if containsAny(label, m.variations) {
				key = m.std
				break
			}
		}
		out[key] += domain.Round(won/wonPerEok, 1)
	}
	return out.Normalize()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
