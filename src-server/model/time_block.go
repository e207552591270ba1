package model

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// A time block is one of three things:
//   - a plain one-off block: no recurrence rule
//   - a master block: IsRecurring, owns RecurrenceRuleID, its Date is the anchor
//   - a generated occurrence: RecurrenceRuleID set, IsRecurring false;
//     RecurrenceParentID points to the master block, or is nil when the rule
//     belongs to an inbox item
type TimeBlock struct {
	bun.BaseModel `bun:"table:time_blocks,alias:tb"`

	ID              string  `bun:"id,pk"`               // required
	UserID          string  `bun:"user_id,notnull"`     // required
	Title           string  `bun:"title,notnull"`       // required
	Subtitle        *string `bun:"subtitle"`
	CategoryID      string  `bun:"category_id,notnull"` // required
	Date            string  `bun:"date,notnull"`        // required, YYYY-MM-DD
	StartTime       string  `bun:"start_time,notnull"`  // required, HH:MM
	DurationMinutes int     `bun:"duration_minutes,notnull"`
	IsUrgent        bool    `bun:"is_urgent,notnull"`

	IsCompleted bool       `bun:"is_completed,notnull"`
	CompletedAt *time.Time `bun:"completed_at"`

	IsRecurring        bool    `bun:"is_recurring,notnull"`
	RecurrenceRuleID   *string `bun:"recurrence_rule_id"`
	RecurrenceParentID *string `bun:"recurrence_parent_id"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

var _ bun.BeforeAppendModelHook = (*TimeBlock)(nil)

func (b *TimeBlock) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b *TimeBlock) Validate() error {
	switch {
	case b.ID == "":
		return fmt.Errorf("(*TimeBlock).Validate: id is blank: %w", ErrInvalidInput)
	case b.UserID == "":
		return fmt.Errorf("(*TimeBlock).Validate: user id is blank: %w", ErrInvalidInput)
	case b.Title == "":
		return fmt.Errorf("(*TimeBlock).Validate: title is blank: %w", ErrInvalidInput)
	case b.CategoryID == "":
		return fmt.Errorf("(*TimeBlock).Validate: category id is blank: %w", ErrInvalidInput)
	case b.DurationMinutes <= 0:
		return fmt.Errorf("(*TimeBlock).Validate: duration must be positive: %w", ErrInvalidInput)
	case b.IsRecurring && b.RecurrenceParentID != nil:
		return fmt.Errorf("(*TimeBlock).Validate: a recurring block can't have a recurrence parent: %w", ErrInvalidInput)
	case b.IsRecurring && b.RecurrenceRuleID == nil:
		return fmt.Errorf("(*TimeBlock).Validate: a recurring block needs a recurrence rule: %w", ErrInvalidInput)
	}
	if _, err := ParseDate(b.Date); err != nil {
		return fmt.Errorf("(*TimeBlock).Validate: %w: %w", err, ErrInvalidInput)
	}
	if _, err := ParseClock(b.StartTime); err != nil {
		return fmt.Errorf("(*TimeBlock).Validate: %w: %w", err, ErrInvalidInput)
	}
	return nil
}

// Owns a recurrence rule and anchors it
func (b *TimeBlock) IsMaster() bool {
	return b.IsRecurring && b.RecurrenceParentID == nil && b.RecurrenceRuleID != nil
}

// Produced by the recurrence engine
func (b *TimeBlock) IsOccurrence() bool {
	return !b.IsRecurring && b.RecurrenceRuleID != nil
}

// Start and end of the block in the given location
func (b *TimeBlock) Span(loc *time.Location) (time.Time, time.Time, error) {
	day, err := ParseDate(b.Date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("(*TimeBlock).Span: %w", err)
	}
	minutes, err := ParseClock(b.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("(*TimeBlock).Span: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc)
	return start, start.Add(time.Duration(b.DurationMinutes) * time.Minute), nil
}
