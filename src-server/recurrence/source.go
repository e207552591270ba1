package recurrence

import (
	"fmt"
	"time"
	"timeblock/src-server/model"

	"github.com/google/uuid"
)

type SourceKind string

const (
	SourceBlock SourceKind = "block"
	SourceInbox SourceKind = "inbox"
)

// Anything that owns a recurrence rule and can stamp out occurrences of it.
type Source interface {
	Kind() SourceKind
	ID() string
	RuleID() string
	Anchor() (time.Time, error)
	Template() Template
}

// Field values copied into every occurrence of a source
type Template struct {
	UserID          string
	Title           string
	Subtitle        *string
	CategoryID      string
	StartTime       string
	DurationMinutes int
	IsUrgent        bool
	ParentID        *string
}

// Build a fresh, unsaved occurrence of the template on date
func (t Template) Instantiate(ruleID string, date time.Time) model.TimeBlock {
	return model.TimeBlock{
		ID:                 uuid.NewString(),
		UserID:             t.UserID,
		Title:              t.Title,
		Subtitle:           t.Subtitle,
		CategoryID:         t.CategoryID,
		Date:               model.FormatDate(date),
		StartTime:          t.StartTime,
		DurationMinutes:    t.DurationMinutes,
		IsUrgent:           t.IsUrgent,
		IsRecurring:        false,
		RecurrenceRuleID:   &ruleID,
		RecurrenceParentID: t.ParentID,
	}
}

// A recurring master time block
type BlockSource struct {
	Master *model.TimeBlock
}

var _ Source = BlockSource{}

func (s BlockSource) Kind() SourceKind { return SourceBlock }
func (s BlockSource) ID() string       { return s.Master.ID }

func (s BlockSource) RuleID() string {
	if s.Master.RecurrenceRuleID == nil {
		return ""
	}
	return *s.Master.RecurrenceRuleID
}

func (s BlockSource) Anchor() (time.Time, error) {
	anchor, err := model.ParseDate(s.Master.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("(BlockSource).Anchor: %w", err)
	}
	return anchor, nil
}

func (s BlockSource) Template() Template {
	parentID := s.Master.ID
	return Template{
		UserID:          s.Master.UserID,
		Title:           s.Master.Title,
		Subtitle:        s.Master.Subtitle,
		CategoryID:      s.Master.CategoryID,
		StartTime:       s.Master.StartTime,
		DurationMinutes: s.Master.DurationMinutes,
		IsUrgent:        s.Master.IsUrgent,
		ParentID:        &parentID,
	}
}

// Scheduling defaults for occurrences of inbox items, which carry no time of
// their own
type InboxDefaults struct {
	StartTime       string
	DurationMinutes int
	CategoryID      string
}

var DefaultInboxDefaults = InboxDefaults{
	StartTime:       "09:00",
	DurationMinutes: 30,
	CategoryID:      model.FocusCategoryID,
}

// A recurring inbox item
type InboxSource struct {
	Item     *model.InboxItem
	Defaults InboxDefaults
}

var _ Source = InboxSource{}

func (s InboxSource) Kind() SourceKind { return SourceInbox }
func (s InboxSource) ID() string       { return s.Item.ID }

func (s InboxSource) RuleID() string {
	if s.Item.RecurrenceRuleID == nil {
		return ""
	}
	return *s.Item.RecurrenceRuleID
}

func (s InboxSource) Anchor() (time.Time, error) {
	return s.Item.Anchor()
}

func (s InboxSource) Template() Template {
	return Template{
		UserID:          s.Item.UserID,
		Title:           s.Item.Title,
		Subtitle:        s.Item.Description,
		CategoryID:      s.Defaults.CategoryID,
		StartTime:       s.Defaults.StartTime,
		DurationMinutes: s.Defaults.DurationMinutes,
		IsUrgent:        s.Item.Priority.IsUrgent(),
	}
}
