package backtest

import "time"

// Dividend months are fixed: the yield model pays one third of the annual
// yield in each of March, August and October.
func isDividendMonth(t time.Time) bool {
	switch t.Month() {
	case time.March, time.August, time.October:
		return true
	}
	return false
}

// monthStart normalizes a date to the first day of its month, midnight UTC
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthEnd returns the last day of t's month, midnight UTC
func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
}

// monthsIn returns the month anchors (first-of-month) covering [start, end]
func monthsIn(start, end time.Time) []time.Time {
	var months []time.Time
	for m := monthStart(start); !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// monthsBetween counts the calendar months covered by [start, end], inclusive
func monthsBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	s, e := monthStart(start), monthStart(end)
	return (e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month()) + 1
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
