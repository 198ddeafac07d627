package report

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

var koreanWeekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// FormatPrice renders a won price with thousands separators
func FormatPrice(price int64) string {
	return humanize.Comma(price)
}

// FormatChangeRate renders a signed percentage with two decimals
func FormatChangeRate(rate float64) string {
	if rate == 0 {
		return "0.00%"
	}
	if rate > 0 {
		return fmt.Sprintf("+%.2f%%", rate)
	}
	return fmt.Sprintf("%.2f%%", rate)
}

// FormatVolume abbreviates share counts into 억 and 만 units
func FormatVolume(volume int64) string {
	switch {
	case volume >= 100_000_000:
		return fmt.Sprintf("%.1f억", float64(volume)/100_000_000)
	case volume >= 10_000:
		return fmt.Sprintf("%.0f만", float64(volume)/10_000)
	default:
		return humanize.Comma(volume)
	}
}

// FormatEok renders a signed net buying amount already expressed in 억원
func FormatEok(v float64) string {
	n := int64(math.Round(v))
	if n > 0 {
		return "+" + humanize.Comma(n) + "억"
	}
	return humanize.Comma(n) + "억"
}

// KoreanDate renders t as "2024년 6월 7일 (금요일)"
func KoreanDate(t time.Time) string {
	return fmt.Sprintf("%d년 %d월 %d일 (%s요일)", t.Year(), int(t.Month()), t.Day(), koreanWeekdays[t.Weekday()])
}

func rateClass(rate float64) string {
	switch {
	case rate > 0:
		return "up"
	case rate < 0:
		return "down"
	default:
		return "flat"
	}
}

// josa picks the particle matching the final syllable of word: withFinal
// after a closing consonant (batchim), withoutFinal otherwise.
func josa(word, withFinal, withoutFinal string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return withFinal
	}
	last := runes[len(runes)-1]
	if last < 0xAC00 || last > 0xD7A3 {
		return withFinal
	}
	if (last-0xAC00)%28 == 0 {
		return withoutFinal
	}
	return withFinal
}
