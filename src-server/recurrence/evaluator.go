package recurrence

import (
	"fmt"
	"slices"
	"time"
	"timeblock/src-server/model"
)

// Fires reports whether the rule, anchored at anchor, produces an occurrence on
// target. Dates before the anchor never fire. Pure: no I/O, no clock.
func Fires(rule *model.RecurrenceRule, anchor, target time.Time) (bool, error) {
	_, ok, err := Ordinal(rule, anchor, target)
	return ok, err
}

// Ordinal is Fires plus the 1-based position of target among the firing dates
// counted from the anchor. The anchor is always #1: a weekly anchor on a day
// outside DaysOfWeek doesn't fire, yet its master block still takes a slot.
//
// The cadence check runs first, then the cutoffs: EndDate (inclusive) and
// MaxOccurrences.
func Ordinal(rule *model.RecurrenceRule, anchor, target time.Time) (int, bool, error) {
	if err := rule.Validate(); err != nil {
		return 0, false, err
	}
	anchor, target = model.Day(anchor), model.Day(target)
	if target.Before(anchor) {
		return 0, false, nil
	}

	var n int
	var ok bool
	switch rule.Type {
	case model.RecurrenceDaily:
		n, ok = daily(rule.Interval, anchor, target)
	case model.RecurrenceWeekly:
		days, _ := rule.Weekdays()
		n, ok = weekly(rule.Interval, days, anchor, target)
	case model.RecurrenceMonthly:
		n, ok = monthly(rule.Interval, anchor, target)
	}
	if !ok {
		return 0, false, nil
	}

	if end, hasEnd, _ := rule.End(); hasEnd && target.After(end) {
		return 0, false, nil
	}
	if rule.MaxOccurrences != nil && n > *rule.MaxOccurrences {
		return 0, false, nil
	}
	return n, true, nil
}

// Between lists the firing dates in [from, to], both inclusive
func Between(rule *model.RecurrenceRule, anchor, from, to time.Time) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	from, to = model.Day(from), model.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("Between: %w", ErrInvalidRange)
	}
	if from.Before(model.Day(anchor)) {
		from = model.Day(anchor)
	}
	dates := make([]time.Time, 0)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		ok, err := Fires(rule, anchor, day)
		if err != nil {
			return nil, err
		}
		if ok {
			dates = append(dates, day)
		}
	}
	return dates, nil
}

func daily(interval int, anchor, target time.Time) (int, bool) {
	diff := model.DaysBetween(anchor, target)
	if diff%interval != 0 {
		return 0, false
	}
	return diff/interval + 1, true
}

// Weeks start on Sunday, matching the 0 = Sunday day encoding.
func weekly(interval int, days []time.Weekday, anchor, target time.Time) (int, bool) {
	weeks := model.DaysBetween(model.WeekStart(anchor), model.WeekStart(target)) / 7
	if weeks%interval != 0 || !slices.Contains(days, target.Weekday()) {
		return 0, false
	}

	count := 0
	if !slices.Contains(days, anchor.Weekday()) {
		count++
	}
	if weeks == 0 {
		for _, day := range days {
			if day >= anchor.Weekday() && day <= target.Weekday() {
				count++
			}
		}
		return count, true
	}
	for _, day := range days {
		if day >= anchor.Weekday() {
			count++
		}
		if day <= target.Weekday() {
			count++
		}
	}
	// active weeks strictly between the anchor's week and the target's week
	count += (weeks/interval - 1) * len(days)
	return count, true
}

// Anchors past the end of a shorter month clamp to that month's last day.
func monthly(interval int, anchor, target time.Time) (int, bool) {
	months := model.MonthsBetween(anchor, target)
	if months%interval != 0 {
		return 0, false
	}
	if target.Day() != min(anchor.Day(), model.DaysInMonth(target)) {
		return 0, false
	}
	return months/interval + 1, true
}
