package model

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/xyedo/rrule"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Returned for a rule that can never be evaluated (bad interval, empty weekly
// day set, unknown cadence, ...)
var ErrInvalidRule = errors.New("invalid recurrence rule")

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// A recurrence rule is owned by exactly one source: a master time block or a
// recurring inbox item. Rules are soft-deleted together with their source so
// that retained (completed/past) occurrences can still resolve them.
type RecurrenceRule struct {
	bun.BaseModel `bun:"table:recurrence_rules,alias:rr"`

	ID     string         `bun:"id,pk"`                        // required
	UserID string         `bun:"user_id,notnull"`              // required
	Type   RecurrenceType `bun:"type,notnull,type:varchar"`    // required
	// every N days/weeks/months
	Interval int `bun:"interval,notnull"`
	// comma separated weekdays, 0 = Sunday; weekly rules only
	DaysOfWeek string `bun:"days_of_week"`
	// YYYY-MM-DD, inclusive
	EndDate        *string `bun:"end_date"`
	MaxOccurrences *int    `bun:"max_occurrences"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

var _ bun.BeforeAppendModelHook = (*RecurrenceRule)(nil)

func (r *RecurrenceRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Check that the rule can be evaluated. Every error wraps ErrInvalidRule.
func (r *RecurrenceRule) Validate() error {
	if r == nil {
		return fmt.Errorf("(*RecurrenceRule).Validate: rule is nil: %w", ErrInvalidRule)
	}
	switch r.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return fmt.Errorf("(*RecurrenceRule).Validate: unknown type %q: %w", r.Type, ErrInvalidRule)
	}
	days, err := r.Weekdays()
	switch {
	case r.Interval <= 0:
		return fmt.Errorf("(*RecurrenceRule).Validate: interval must be positive, got %d: %w", r.Interval, ErrInvalidRule)
	case err != nil:
		return fmt.Errorf("(*RecurrenceRule).Validate: %w", err)
	case r.Type == RecurrenceWeekly && len(days) == 0:
		return fmt.Errorf("(*RecurrenceRule).Validate: weekly rule needs at least one day of week: %w", ErrInvalidRule)
	case r.MaxOccurrences != nil && *r.MaxOccurrences <= 0:
		return fmt.Errorf("(*RecurrenceRule).Validate: max occurrences must be positive: %w", ErrInvalidRule)
	}
	if _, _, err := r.End(); err != nil {
		return fmt.Errorf("(*RecurrenceRule).Validate: %w", err)
	}
	return nil
}

// Parse DaysOfWeek into a sorted, deduplicated weekday set
func (r *RecurrenceRule) Weekdays() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, 7)
	for _, part := range strings.Split(r.DaysOfWeek, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("day of week %q is not in 0-6: %w", part, ErrInvalidRule)
		}
		if !slices.Contains(days, time.Weekday(n)) {
			days = append(days, time.Weekday(n))
		}
	}
	slices.Sort(days)
	return days, nil
}

// Store a weekday set into DaysOfWeek
func (r *RecurrenceRule) SetWeekdays(days ...time.Weekday) {
	parts := make([]string, 0, len(days))
	sorted := slices.Clone(days)
	slices.Sort(sorted)
	for _, day := range slices.Compact(sorted) {
		parts = append(parts, strconv.Itoa(int(day)))
	}
	r.DaysOfWeek = strings.Join(parts, ",")
}

// The inclusive end date, if any
func (r *RecurrenceRule) End() (time.Time, bool, error) {
	if r.EndDate == nil || *r.EndDate == "" {
		return time.Time{}, false, nil
	}
	end, err := ParseDate(*r.EndDate)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("end date: %w: %w", err, ErrInvalidRule)
	}
	return end, true, nil
}

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Express the rule as an RFC 5545 RRULE anchored at the given date.
//
// Monthly rules anchored after the 28th clamp to the last day of shorter
// months, which is written as BYMONTHDAY=28..N;BYSETPOS=-1.
func (r *RecurrenceRule) ToRRule(anchor time.Time) (*rrule.RRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	anchor = Day(anchor)
	opt := rrule.ROption{
		Dtstart:  anchor,
		Interval: r.Interval,
		Wkst:     rrule.SU,
	}
	switch r.Type {
	case RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		days, _ := r.Weekdays()
		for _, day := range days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	case RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
		if day := anchor.Day(); day > 28 {
			for d := 28; d <= day; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
			opt.Bysetpos = []int{-1}
		} else {
			opt.Bymonthday = []int{day}
		}
	}
	if end, ok, _ := r.End(); ok {
		opt.Until = end
	}
	if r.MaxOccurrences != nil {
		opt.Count = *r.MaxOccurrences
	}

	result, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("(*RecurrenceRule).ToRRule: %w", err)
	}
	return result, nil
}

// Human readable summary, e.g. "Every 2 weeks on Monday, Thursday until 2026-03-01"
func (r *RecurrenceRule) Describe() string {
	unit := map[RecurrenceType]string{
		RecurrenceDaily:   "day",
		RecurrenceWeekly:  "week",
		RecurrenceMonthly: "month",
	}[r.Type]

	var sb strings.Builder
	switch {
	case r.Interval <= 1:
		sb.WriteString(cases.Title(language.English).String(string(r.Type)))
	default:
		sb.WriteString(fmt.Sprintf("Every %d %ss", r.Interval, unit))
	}
	if r.Type == RecurrenceWeekly {
		if days, err := r.Weekdays(); err == nil && len(days) > 0 {
			names := make([]string, len(days))
			for i, day := range days {
				names[i] = day.String()
			}
			sb.WriteString(" on " + strings.Join(names, ", "))
		}
	}
	if r.EndDate != nil && *r.EndDate != "" {
		sb.WriteString(" until " + *r.EndDate)
	}
	if r.MaxOccurrences != nil {
		sb.WriteString(fmt.Sprintf(", %d times", *r.MaxOccurrences))
	}
	return sb.String()
}
