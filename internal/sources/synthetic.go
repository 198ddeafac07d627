package sources

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/Thetason/korean-stock-daily-report/internal/domain"
)

// Share of the daily index move attributed to each slot
var slotIndexWeights = map[string]float64{
	"09:30": 0.25,
	"10:00": 0.20,
	"11:00": 0.10,
	"12:00": 0.05,
	"13:00": 0.10,
	"14:00": 0.15,
	"15:00": 0.10,
	"15:30": 0.05,
}

// Share of an investor type's daily net buying attributed to each slot
var investorSlotWeights = map[domain.InvestorType]map[string]float64{
	domain.InvestorIndividual: {
		"09:30": 0.25, "10:00": 0.18, "11:00": 0.12, "12:00": 0.08,
		"13:00": 0.10, "14:00": 0.12, "15:00": 0.10, "15:30": 0.05,
	},
	domain.InvestorForeign: {
		"09:30": 0.15, "10:00": 0.15, "11:00": 0.15, "12:00": 0.10,
		"13:00": 0.15, "14:00": 0.15, "15:00": 0.10, "15:30": 0.05,
	},
	domain.InvestorInstitution: {
		"09:30": 0.20, "10:00": 0.12, "11:00": 0.10, "12:00": 0.08,
		"13:00": 0.12, "14:00": 0.15, "15:00": 0.18, "15:30": 0.05,
	},
	domain.InvestorFinancialInv: {
		"09:30": 0.18, "10:00": 0.15, "11:00": 0.12, "12:00": 0.10,
		"13:00": 0.12, "14:00": 0.15, "15:00": 0.13, "15:30": 0.05,
	},
	domain.InvestorInvestTrust: {
		"09:30": 0.15, "10:00": 0.13, "11:00": 0.12, "12:00": 0.10,
		"13:00": 0.15, "14:00": 0.15, "15:00": 0.15, "15:30": 0.05,
	},
	domain.InvestorPensionFund: {
		"09:30": 0.10, "10:00": 0.12, "11:00": 0.15, "12:00": 0.12,
		"13:00": 0.15, "14:00": 0.15, "15:00": 0.16, "15:30": 0.05,
	},
}

var defaultSlotWeights = map[string]float64{
	"09:30": 0.20, "10:00": 0.15, "11:00": 0.12, "12:00": 0.08,
	"13:00": 0.12, "14:00": 0.15, "15:00": 0.13, "15:30": 0.05,
}

// SyntheticHourly estimates an intraday flow table from daily totals.
// No minute-level data backs these numbers, so every slot it returns is
// marked Synthetic. Output is deterministic for a given date and input.
type SyntheticHourly struct{}

// Estimate distributes daily flows across the fixed intraday slots
func (SyntheticHourly) Estimate(date time.Time, flows *domain.InvestorFlows) []domain.HourlyFlow {
	seed, _ := strconv.ParseInt(date.Format("20060102"), 10, 64)
	rng := rand.New(rand.NewSource(seed))

	totalKOSPI := uniform(rng, -2.0, 2.0)
	totalKOSDAQ := uniform(rng, -3.0, 3.0)

	var kospi, kosdaq domain.NetBuying
	if flows != nil {
		kospi, kosdaq = flows.KOSPI, flows.KOSDAQ
	}

	out := make([]domain.HourlyFlow, 0, len(domain.HourlySlots))
	for _, slot := range domain.HourlySlots {
		w := slotIndexWeights[slot]
		out = append(out, domain.HourlyFlow{
			Slot:         slot,
			KOSPI:        distribute(rng, kospi, slot),
			KOSDAQ:       distribute(rng, kosdaq, slot),
			KOSPIChange:  domain.Round(totalKOSPI*w+uniform(rng, -0.3, 0.3), 2),
			KOSDAQChange: domain.Round(totalKOSDAQ*w+uniform(rng, -0.5, 0.5), 2),
			Synthetic:    true,
		})
	}
	return out
}

func distribute(rng *rand.Rand, daily domain.NetBuying, slot string) domain.NetBuying {
	out := make(domain.NetBuying, len(daily))
	keys := make([]string, 0, len(daily))
	for k := range daily {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	for _, k := range keys {
		it := domain.InvestorType(k)
		weights, ok := investorSlotWeights[it]
		if !ok {
			weights = defaultSlotWeights
		}
		variation := uniform(rng, 0.8, 1.2)
		out[it] = domain.Round(daily[it]*weights[slot]*variation, 1)
	}
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
