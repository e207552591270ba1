package model

import (
	"errors"
	"fmt"
	"time"
)

// Wrapped by every Validate error of blocks and inbox items
var ErrInvalidInput = errors.New("invalid input")

const (
	// calendar date, stored as text so it sorts and compares lexicographically
	DateLayout = "2006-01-02"
	// wall clock start time of a block
	ClockLayout = "15:04"
)

// Truncate a time to its calendar date, at midnight UTC. The calendar date is
// read in the time's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Format the calendar date of t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// Parse a YYYY-MM-DD string into a calendar date at midnight UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate: %w", err)
	}
	return t, nil
}

// Whole days from a to b, negative when b is before a
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}

// Whole calendar months from a to b, ignoring the day of month
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// Number of days in the month of t
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Sunday on or before t, since weekday 0 is Sunday
func WeekStart(t time.Time) time.Time {
	d := Day(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// Parse a HH:MM clock string into minutes after midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("ParseClock: %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
