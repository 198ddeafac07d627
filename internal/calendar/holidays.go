package calendar

import "time"

type holiday struct {
	Month time.Month
	Day   int
	Name  string
}

// krxHolidays lists exchange closures by year. The table is maintained by
// hand; lunar holidays and substitute days must be added every year.
var krxHolidays = map[int][]holiday{
	2024: {
		{time.January, 1, "신정"},
		{time.February, 9, "설날 연휴"},
		{time.February, 10, "설날"},
		{time.February, 11, "설날 연휴"},
		{time.February, 12, "대체공휴일"},
		{time.March, 1, "삼일절"},
		{time.May, 15, "부처님오신날"},
		{time.June, 6, "현충일"},
		{time.August, 15, "광복절"},
		{time.September, 16, "추석 연휴"},
		{time.September, 17, "추석"},
		{time.September, 18, "추석 연휴"},
		{time.October, 3, "개천절"},
		{time.October, 9, "한글날"},
		{time.December, 25, "성탄절"},
	},
	2025: {
		{time.January, 1, "신정"},
		{time.January, 28, "설날 연휴"},
		{time.January, 29, "설날"},
		{time.January, 30, "설날 연휴"},
		{time.March, 1, "삼일절"},
		{time.May, 5, "어린이날"},
		{time.May, 12, "부처님오신날"},
		{time.June, 6, "현충일"},
		{time.August, 15, "광복절"},
		{time.October, 3, "개천절"},
		{time.October, 5, "추석 연휴"},
		{time.October, 6, "추석"},
		{time.October, 7, "추석 연휴"},
		{time.October, 8, "대체공휴일"},
		{time.October, 9, "한글날"},
		{time.December, 25, "성탄절"},
	},
	2026: {
		{time.January, 1, "신정"},
		{time.February, 16, "설날 연휴"},
		{time.February, 17, "설날"},
		{time.February, 18, "설날 연휴"},
		{time.March, 2, "삼일절 대체공휴일"},
		{time.May, 1, "근로자의 날"},
		{time.May, 5, "어린이날"},
		{time.May, 25, "부처님오신날 대체공휴일"},
		{time.June, 3, "지방선거"},
		{time.August, 17, "광복절 대체공휴일"},
		{time.September, 24, "추석 연휴"},
		{time.September, 25, "추석"},
		{time.October, 5, "개천절 대체공휴일"},
		{time.October, 9, "한글날"},
		{time.December, 25, "성탄절"},
		{time.December, 31, "연말 휴장"},
	},
}

// DefaultHolidays returns a copy of the built-in closure table as dates in loc
func DefaultHolidays(loc *time.Location) []time.Time {
	var out []time.Time
	for year, days := range krxHolidays {
		for _, h := range days {
			out = append(out, time.Date(year, h.Month, h.Day, 0, 0, 0, 0, loc))
		}
	}
	return out
}

// HolidayName returns the name of a built-in closure, or "" if t is not one
func HolidayName(t time.Time) string {
	for _, h := range krxHolidays[t.Year()] {
		if h.Month == t.Month() && h.Day == t.Day() {
			return h.Name
		}
	}
	return ""
}
