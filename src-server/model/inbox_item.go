package model

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// High and Critical items are scheduled as urgent blocks
func (p Priority) IsUrgent() bool {
	return p == PriorityHigh || p == PriorityCritical
}

type InboxItem struct {
	bun.BaseModel `bun:"table:inbox_items,alias:ii"`

	ID          string   `bun:"id,pk"`                         // required
	UserID      string   `bun:"user_id,notnull"`               // required
	Title       string   `bun:"title,notnull"`                 // required
	Description *string  `bun:"description"`
	Priority    Priority `bun:"priority,notnull,type:varchar"` // required

	IsRecurring      bool       `bun:"is_recurring,notnull"`
	IsDismissed      bool       `bun:"is_dismissed,notnull"`
	DismissedAt      *time.Time `bun:"dismissed_at"`
	RecurrenceRuleID *string    `bun:"recurrence_rule_id"`
	// YYYY-MM-DD; defaults to the creation date
	AnchorDate string `bun:"anchor_date,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

var _ bun.BeforeAppendModelHook = (*InboxItem)(nil)

func (i *InboxItem) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if i.CreatedAt.IsZero() {
			i.CreatedAt = now
		}
		if i.AnchorDate == "" {
			i.AnchorDate = FormatDate(i.CreatedAt)
		}
		i.UpdatedAt = now
	case *bun.UpdateQuery:
		i.UpdatedAt = now
	}
	return nil
}

func (i *InboxItem) Validate() error {
	switch {
	case i.ID == "":
		return fmt.Errorf("(*InboxItem).Validate: id is blank: %w", ErrInvalidInput)
	case i.UserID == "":
		return fmt.Errorf("(*InboxItem).Validate: user id is blank: %w", ErrInvalidInput)
	case i.Title == "":
		return fmt.Errorf("(*InboxItem).Validate: title is blank: %w", ErrInvalidInput)
	case i.IsRecurring && i.RecurrenceRuleID == nil:
		return fmt.Errorf("(*InboxItem).Validate: a recurring item needs a recurrence rule: %w", ErrInvalidInput)
	}
	switch i.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
	default:
		return fmt.Errorf("(*InboxItem).Validate: unknown priority %q: %w", i.Priority, ErrInvalidInput)
	}
	if i.AnchorDate != "" {
		if _, err := ParseDate(i.AnchorDate); err != nil {
			return fmt.Errorf("(*InboxItem).Validate: anchor date: %w: %w", err, ErrInvalidInput)
		}
	}
	return nil
}

// The date recurrence offsets are computed from
func (i *InboxItem) Anchor() (time.Time, error) {
	if i.AnchorDate != "" {
		return ParseDate(i.AnchorDate)
	}
	if i.CreatedAt.IsZero() {
		return time.Time{}, fmt.Errorf("(*InboxItem).Anchor: no anchor date nor creation date")
	}
	return Day(i.CreatedAt), nil
}
