// Package calendar holds day arithmetic for monthly menus.
// All comparisons are at calendar-day granularity in the location of the
// reference time.
package calendar

import "time"

// DaysInMonth returns the number of days of month (1-12) in year.
// Out of range months return 0.
func DaysInMonth(year, month int) int {
	if !ValidMonth(month) {
		return 0
	}
	// day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidMonth reports whether month is in 1..12.
func ValidMonth(month int) bool {
	return month >= 1 && month <= 12
}

// ValidDay reports whether day exists in the given month.
func ValidDay(year, month, day int) bool {
	return day >= 1 && day <= DaysInMonth(year, month)
}

// Midnight truncates t to 00:00 of its day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsPastDay reports whether date is strictly before today (relative to now).
func IsPastDay(date, now time.Time) bool {
	return Midnight(date.In(now.Location())).Before(Midnight(now))
}

// IsPast reports whether year-month-day is before now's calendar day.
func IsPast(year, month, day int, now time.Time) bool {
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	return date.Before(Midnight(now))
}

// DefaultDay picks the active day after the month changes: selected if it
// is still a valid future-or-today day, otherwise the first non-past day.
// When the whole month is in the past, day 1 is returned.
func DefaultDay(year, month, selected int, now time.Time) int {
	days := DaysInMonth(year, month)
	if days == 0 {
		return 1
	}
	if selected >= 1 && selected <= days && !IsPast(year, month, selected, now) {
		return selected
	}
	for d := 1; d <= days; d++ {
		if !IsPast(year, month, d, now) {
			return d
		}
	}
	return 1
}

// Selectable reports whether the day can be chosen for editing.
func Selectable(year, month, day int, now time.Time) bool {
	return ValidDay(year, month, day) && !IsPast(year, month, day, now)
}
