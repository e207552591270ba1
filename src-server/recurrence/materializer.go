package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"timeblock/src-server/model"

	"github.com/samber/mo"
)

type Config struct {
	// nil records nothing
	Recorder      Recorder
	InboxDefaults InboxDefaults
	// largest inclusive range GetByDateRange accepts, 0 for no limit
	MaxRangeDays int
}

var DefaultConfig = Config{
	InboxDefaults: DefaultInboxDefaults,
	MaxRangeDays:  366,
}

// Lazily turns recurrence rules into persisted time blocks. Occurrences are
// created when a date is first viewed and never ahead of time.
//
// Safe for concurrent use; concurrent materializations of the same occurrence
// converge on one row through the repository's unique key.
type Engine struct {
	repo   Repository
	config Config
}

func NewEngine(repo Repository, config Config) *Engine {
	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}
	if config.InboxDefaults == (InboxDefaults{}) {
		config.InboxDefaults = DefaultInboxDefaults
	}
	return &Engine{repo: repo, config: config}
}

// Copy of the engine backed by another repository, e.g. one bound to a
// transaction
func (e *Engine) WithRepository(repo Repository) *Engine {
	clone := *e
	clone.repo = repo
	return &clone
}

// Get or create the occurrence of a master block on date. None when the rule
// does not fire on date, when date is the master's own date, or when the user
// deleted that occurrence.
func (e *Engine) MaterializeBlockOccurrence(
	ctx context.Context,
	master *model.TimeBlock,
	rule *model.RecurrenceRule,
	date time.Time,
) (mo.Option[model.TimeBlock], error) {
	switch {
	case master == nil || !master.IsMaster():
		return mo.None[model.TimeBlock](), fmt.Errorf("MaterializeBlockOccurrence: %w", ErrNotRecurring)
	case model.FormatDate(date) == master.Date:
		return mo.None[model.TimeBlock](), nil
	}
	return e.materialize(ctx, BlockSource{Master: master}, rule, date)
}

// Get or create the occurrence of a recurring inbox item on date. Dismissed
// items produce nothing.
func (e *Engine) MaterializeInboxOccurrence(
	ctx context.Context,
	item *model.InboxItem,
	rule *model.RecurrenceRule,
	date time.Time,
) (mo.Option[model.TimeBlock], error) {
	switch {
	case item == nil || !item.IsRecurring || item.RecurrenceRuleID == nil:
		return mo.None[model.TimeBlock](), fmt.Errorf("MaterializeInboxOccurrence: %w", ErrNotRecurring)
	case item.IsDismissed:
		return mo.None[model.TimeBlock](), nil
	}
	return e.materialize(ctx, InboxSource{Item: item, Defaults: e.config.InboxDefaults}, rule, date)
}

func (e *Engine) materialize(
	ctx context.Context,
	src Source,
	rule *model.RecurrenceRule,
	date time.Time,
) (mo.Option[model.TimeBlock], error) {
	if rule == nil || rule.ID != src.RuleID() {
		return mo.None[model.TimeBlock](), fmt.Errorf("materialize: rule does not belong to %s %s", src.Kind(), src.ID())
	}
	anchor, err := src.Anchor()
	if err != nil {
		return mo.None[model.TimeBlock](), fmt.Errorf("materialize: %w", err)
	}
	fires, err := Fires(rule, anchor, date)
	if err != nil {
		return mo.None[model.TimeBlock](), fmt.Errorf("materialize: %w", err)
	}
	if !fires {
		return mo.None[model.TimeBlock](), nil
	}

	key := NewOccurrenceKey(rule.ID, date)
	existing, err := e.find(ctx, key)
	switch {
	case err != nil:
		return mo.None[model.TimeBlock](), err
	case existing.IsPresent() || existing.suppressed:
		return existing.Option, nil
	}

	block := src.Template().Instantiate(rule.ID, date)
	err = e.repo.CreateOccurrence(ctx, &block)
	switch {
	case errors.Is(err, ErrOccurrenceExists):
		// lost the race to another writer, theirs is the occurrence
		e.config.Recorder.Collided(src.Kind())
		slog.Debug("occurrence created concurrently", "key", key.String())
		existing, err := e.find(ctx, key)
		if err != nil {
			return mo.None[model.TimeBlock](), err
		}
		if !existing.IsPresent() && !existing.suppressed {
			return mo.None[model.TimeBlock](), fmt.Errorf("materialize: %s reported as taken but not found", key)
		}
		return existing.Option, nil
	case err != nil:
		return mo.None[model.TimeBlock](), fmt.Errorf("materialize %s: %w", key, err)
	}

	e.config.Recorder.Materialized(src.Kind())
	slog.Debug("occurrence materialized",
		"key", key.String(),
		"source", string(src.Kind()),
		"sourceID", src.ID(),
		"blockID", block.ID,
	)
	return mo.Some(block), nil
}

type lookup struct {
	mo.Option[model.TimeBlock]
	// the key is held by a soft-deleted block
	suppressed bool
}

// Soft-deleted occurrences keep their key so a deleted occurrence stays deleted
func (e *Engine) find(ctx context.Context, key OccurrenceKey) (lookup, error) {
	found, err := e.repo.FindOccurrence(ctx, key)
	if err != nil {
		return lookup{Option: mo.None[model.TimeBlock]()}, fmt.Errorf("find %s: %w", key, err)
	}
	block, ok := found.Get()
	switch {
	case !ok:
		return lookup{Option: mo.None[model.TimeBlock]()}, nil
	case !block.DeletedAt.IsZero():
		return lookup{Option: mo.None[model.TimeBlock](), suppressed: true}, nil
	}
	return lookup{Option: mo.Some(block)}, nil
}
