package timeutils

import "time"

const hoursPerDay = 24

// FloorDay returns the given `t` rounded down to midnight in the given location.
// Consumption samples are bucketed by the calendar day they fall on, and the day boundary
// depends on the timezone, e.g. the instant "2024-04-06T23:30:00Z" is a Saturday in UTC but
// already Sunday in New Zealand.
func FloorDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween returns the (fractional) number of days from a to b. The result is negative
// when b is before a.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / hoursPerDay
}

// AddDays returns t shifted forward by the given (fractional) number of days.
func AddDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(days * float64(hoursPerDay) * float64(time.Hour)))
}
