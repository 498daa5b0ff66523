package unlimited

import "time"

// All billing dates are UTC calendar dates (midnight UTC). Keeping a single reference
// zone stops skip/resume from drifting across DST changes.

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// occurrence returns the billing date for cycleDay in the given month, clamped to the
// month's last day (cycle day 31 bills on Feb 28/29).
func occurrence(year int, month time.Month, cycleDay int) time.Time {
	// normalise month overflow (e.g. month 13) before clamping
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	day := cycleDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// nextCycle advances a billing date by exactly one monthly cycle.
func nextCycle(current time.Time, cycleDay int) time.Time {
	current = dateOnly(current)
	return occurrence(current.Year(), current.Month()+1, cycleDay)
}

// firstCycleOnOrAfter returns the earliest occurrence of cycleDay that is not before day.
func firstCycleOnOrAfter(day time.Time, cycleDay int) time.Time {
	day = dateOnly(day)
	candidate := occurrence(day.Year(), day.Month(), cycleDay)
	if candidate.Before(day) {
		candidate = occurrence(day.Year(), day.Month()+1, cycleDay)
	}
	return candidate
}

// initialSchedule derives the cycle day and first billing date for a plan activated at now.
func initialSchedule(now time.Time) (int, time.Time) {
	today := dateOnly(now)
	cycleDay := today.Day()
	return cycleDay, nextCycle(today, cycleDay)
}
