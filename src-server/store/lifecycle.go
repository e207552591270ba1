package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"

	"github.com/google/uuid"
)

// Insert a one-off block
func (s *Store) CreateBlock(ctx context.Context, block *model.TimeBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	block.IsRecurring = false
	block.RecurrenceRuleID = nil
	block.RecurrenceParentID = nil
	if err := block.Validate(); err != nil {
		return fmt.Errorf("(*Store).CreateBlock: %w", err)
	}
	if _, err := s.db.NewInsert().Model(block).Exec(ctx); err != nil {
		return fmt.Errorf("(*Store).CreateBlock: %w", err)
	}
	return nil
}

// Insert a master block and the rule it owns. The block's date anchors the rule.
func (s *Store) CreateRecurringBlock(ctx context.Context, master *model.TimeBlock, rule *model.RecurrenceRule) error {
	if master.ID == "" {
		master.ID = uuid.NewString()
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.UserID = master.UserID
	master.IsRecurring = true
	master.RecurrenceRuleID = &rule.ID
	master.RecurrenceParentID = nil

	if err := rule.Validate(); err != nil {
		return fmt.Errorf("(*Store).CreateRecurringBlock: %w", err)
	}
	if err := master.Validate(); err != nil {
		return fmt.Errorf("(*Store).CreateRecurringBlock: %w", err)
	}

	if err := s.RunInTx(ctx, func(ctx context.Context, tx *Store) error {
		if _, err := tx.db.NewInsert().Model(rule).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.db.NewInsert().Model(master).Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("(*Store).CreateRecurringBlock: %w", err)
	}
	slog.Debug("recurring block created", "blockID", master.ID, "ruleID", rule.ID, "anchor", master.Date)
	return nil
}

// Insert an inbox item; rule is required for recurring items and ignored
// otherwise
func (s *Store) CreateInboxItem(ctx context.Context, item *model.InboxItem, rule *model.RecurrenceRule) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.AnchorDate == "" {
		item.AnchorDate = model.FormatDate(item.CreatedAt)
	}
	item.IsDismissed = false
	item.DismissedAt = nil
	item.RecurrenceRuleID = nil
	if item.IsRecurring {
		if rule == nil {
			return fmt.Errorf("(*Store).CreateInboxItem: recurring item without a rule: %w", recurrence.ErrInvalidRule)
		}
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		rule.UserID = item.UserID
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("(*Store).CreateInboxItem: %w", err)
		}
		item.RecurrenceRuleID = &rule.ID
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("(*Store).CreateInboxItem: %w", err)
	}

	if err := s.RunInTx(ctx, func(ctx context.Context, tx *Store) error {
		if item.IsRecurring {
			if _, err := tx.db.NewInsert().Model(rule).Exec(ctx); err != nil {
				return err
			}
		}
		if _, err := tx.db.NewInsert().Model(item).Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("(*Store).CreateInboxItem: %w", err)
	}
	return nil
}

// Mark a block done, or not done
func (s *Store) SetBlockCompleted(ctx context.Context, id string, completed bool, at time.Time) (*model.TimeBlock, error) {
	block, err := s.GetBlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("(*Store).SetBlockCompleted: %w", err)
	}
	block.IsCompleted = completed
	block.CompletedAt = nil
	if completed {
		at = at.UTC()
		block.CompletedAt = &at
	}
	if _, err := s.db.NewUpdate().
		Model(block).
		Column("is_completed", "completed_at", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).SetBlockCompleted: %w", err)
	}
	return block, nil
}

// Delete a block. Deleting a master block ends its series: future incomplete
// occurrences go away and the rule is retired. A deleted occurrence keeps its
// date so it isn't generated again.
func (s *Store) DeleteBlock(ctx context.Context, engine *recurrence.Engine, id string, today time.Time) error {
	if err := s.RunInTx(ctx, func(ctx context.Context, tx *Store) error {
		block, err := tx.GetBlock(ctx, id)
		if err != nil {
			return err
		}
		if block.IsMaster() {
			if err := tx.endSeries(ctx, engine, *block.RecurrenceRuleID, today); err != nil {
				return err
			}
		}
		if _, err := tx.db.NewDelete().Model(block).WherePK().Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("(*Store).DeleteBlock: %w", err)
	}
	return nil
}

// Turn a master block back into a one-off block
func (s *Store) RemoveBlockRecurrence(ctx context.Context, engine *recurrence.Engine, id string, today time.Time) (*model.TimeBlock, error) {
	var result *model.TimeBlock
	if err := s.RunInTx(ctx, func(ctx context.Context, tx *Store) error {
		block, err := tx.GetBlock(ctx, id)
		if err != nil {
			return err
		}
		if !block.IsMaster() {
			return fmt.Errorf("block %s: %w", id, recurrence.ErrNotRecurring)
		}
		if err := tx.endSeries(ctx, engine, *block.RecurrenceRuleID, today); err != nil {
			return err
		}
		block.IsRecurring = false
		block.RecurrenceRuleID = nil
		if _, err := tx.db.NewUpdate().
			Model(block).
			Column("is_recurring", "recurrence_rule_id", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		result = block
		return nil
	}); err != nil {
		return nil, fmt.Errorf("(*Store).RemoveBlockRecurrence: %w", err)
	}
	return result, nil
}

// Replace the cadence of a rule. Future incomplete occurrences of the old
// cadence are dropped.
func (s *Store) UpdateRecurrence(
	ctx context.Context,
	engine *recurrence.Engine,
	ruleID string,
	patch *model.RecurrenceRule,
	today time.Time,
) (*model.RecurrenceRule, error) {
	var result *model.RecurrenceRule
	if err := s.RunInTx(ctx, func(ctx context.Context, tx *Store) error {
		found, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		rule, ok := found.Get()
		if !ok {
			return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
		}
		rule.Type = patch.Type
		rule.Interval = patch.Interval
		rule.DaysOfWeek = patch.DaysOfWeek
		rule.EndDate = patch.EndDate
		rule.MaxOccurrences = patch.MaxOccurrences
		if err := rule.Validate(); err != nil {
			return err
		}
		if _, err := tx.db.NewUpdate().
			Model(&rule).
			Column("type", "interval", "days_of_week", "end_date", "max_occurrences", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := engine.WithRepository(tx).OnRuleChanged(ctx, rule.ID, today); err != nil {
			return err
		}
		result = &rule
		return nil
	}); err != nil {
		return nil, fmt.Errorf("(*Store).UpdateRecurrence: %w", err)
	}
	return result, nil
}

// Dismiss an inbox item. A dismissed recurring item stops producing new
// occurrences; the ones already materialized stay.
func (s *Store) DismissInboxItem(ctx context.Context, id string, now time.Time) (*model.InboxItem, error) {
	item, err := s.GetInboxItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("(*Store).DismissInboxItem: %w", err)
	}
	if item.IsDismissed {
		return item, nil
	}
	now = now.UTC()
	item.IsDismissed = true
	item.DismissedAt = &now
	if _, err := s.db.NewUpdate().
		Model(item).
		Column("is_dismissed", "dismissed_at", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).DismissInboxItem: %w", err)
	}
	return item, nil
}

// Delete an inbox item, ending its series if it recurs
func (s *Store) DeleteInboxItem(ctx context.Context, engine *recurrence.Engine, id string, today time.Time) error {
	if err := s.RunInTx(ctx, func(ctx context.Context, tx *Store) error {
		item, err := tx.GetInboxItem(ctx, id)
		if err != nil {
			return err
		}
		if item.IsRecurring && item.RecurrenceRuleID != nil {
			if err := tx.endSeries(ctx, engine, *item.RecurrenceRuleID, today); err != nil {
				return err
			}
		}
		if _, err := tx.db.NewDelete().Model(item).WherePK().Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("(*Store).DeleteInboxItem: %w", err)
	}
	return nil
}

// Cascade the rule's future occurrences and retire the rule. The rule row is
// soft-deleted so retained occurrences still resolve it.
func (s *Store) endSeries(ctx context.Context, engine *recurrence.Engine, ruleID string, today time.Time) error {
	if _, err := engine.WithRepository(s).OnSourceDeleted(ctx, ruleID, today); err != nil {
		return err
	}
	if _, err := s.db.NewDelete().
		Model(&model.RecurrenceRule{ID: ruleID}).
		WherePK().
		Exec(ctx); err != nil {
		return fmt.Errorf("endSeries: %w", err)
	}
	return nil
}
