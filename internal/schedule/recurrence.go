package schedule

import "time"

// Next returns the occurrence after last. Minutes, hours, days and weeks are
// fixed-duration additions; months and years use calendar arithmetic keeping
// the same day-of-month where it exists and clamping to the last valid day
// otherwise (Jan 31 + 1mo is Feb 28/29).
func (iv Interval) Next(last time.Time) time.Time {
	switch iv.Unit {
	case UnitMonth:
		return addCalendarMonths(last, iv.Amount)
	case UnitYear:
		return addCalendarMonths(last, 12*iv.Amount)
	default:
		return last.Add(iv.fixedDuration())
	}
}

func addCalendarMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// Walk from the first of the month so AddDate never normalizes across a
	// month boundary, then clamp the day.
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)
	if max := daysIn(first.Year(), first.Month()); d > max {
		d = max
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// expired reports whether a candidate occurrence is at or past the expiry
// bound. A nil bound never expires.
func expired(candidate time.Time, expiresAt *time.Time) bool {
	if expiresAt == nil || expiresAt.IsZero() {
		return false
	}
	return !candidate.Before(*expiresAt)
}
