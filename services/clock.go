package services

import (
	"time"

	"gorm.io/datatypes"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// calendarDay returns the date t falls on in loc, as midnight UTC.
// Dates are persisted in that form so comparisons never depend on the driver's zone handling.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateParam renders a calendar day for binding to a DATE column. Drivers move a
// time.Time into the connection's zone before truncating it, a plain date string they pass through.
func DateParam(day time.Time) string {
	return day.Format("2006-01-02")
}

// storedDay normalizes a date column read back from the database.
func storedDay(d datatypes.Date) time.Time {
	y, m, dd := time.Time(d).Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

// weekStart is Monday 00:00 of the week containing t, in loc.
func weekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// monthStart is the 1st of t's month at 00:00, in loc.
func monthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}
