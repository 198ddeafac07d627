package analysis

import "github.com/Thetason/korean-stock-daily-report/internal/domain"

// CalculateSentiment counts advancers and decliners and derives the mood.
// An empty snapshot yields all zero counts and a flat mood.
func CalculateSentiment(snapshot domain.MarketSnapshot) domain.MarketSentiment {
	s := domain.MarketSentiment{TotalStocks: snapshot.Len(), Mood: domain.MoodFlat}
	if s.TotalStocks == 0 {
		return s
	}

	rates := make([]float64, 0, s.TotalStocks)
	for _, r := range snapshot.Records {
		switch {
		case r.ChangeRate > 0:
			s.RisingStocks++
		case r.ChangeRate < 0:
			s.FallingStocks++
		}
		rates = append(rates, r.ChangeRate)
	}
	s.UnchangedStocks = s.TotalStocks - s.RisingStocks - s.FallingStocks

	rising := float64(s.RisingStocks) / float64(s.TotalStocks) * 100
	falling := float64(s.FallingStocks) / float64(s.TotalStocks) * 100
	avg := mean(rates)

	s.RisingRatio = domain.Round(rising, 1)
	s.FallingRatio = domain.Round(falling, 1)
	s.AvgChangeRate = domain.Round(avg, 2)
	s.Mood = DetermineMood(rising, avg)
	return s
}

// DetermineMood applies the ordered mood rules; the first match wins
func DetermineMood(risingRatio, avgChangeRate float64) domain.Mood {
	switch {
	case risingRatio > 60 && avgChangeRate > 1:
		return domain.MoodStrongBull
	case risingRatio > 50 && avgChangeRate > 0:
		return domain.MoodMildBull
	case risingRatio < 40 && avgChangeRate < -1:
		return domain.MoodStrongBear
	case risingRatio < 50 && avgChangeRate < 0:
		return domain.MoodMildBear
	default:
		return domain.MoodFlat
	}
}
