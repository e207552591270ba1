package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"

	"github.com/samber/mo"
	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("not found")

// Bun backed persistence for blocks, inbox items and rules. Implements the
// recurrence engine's Repository.
type Store struct {
	db bun.IDB
}

var _ recurrence.Repository = (*Store)(nil)

func New(db bun.IDB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() bun.IDB {
	return s.db
}

// Run fn against a store bound to a transaction. Nested calls use savepoints.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, New(tx))
	})
}

func (s *Store) GetRecurringParentBlocks(ctx context.Context, userID string) ([]model.TimeBlock, error) {
	blocks := make([]model.TimeBlock, 0)
	if err := s.db.NewSelect().
		Model(&blocks).
		Where("user_id = ?", userID).
		Where("is_recurring = ?", true).
		Where("recurrence_rule_id IS NOT NULL").
		Where("recurrence_parent_id IS NULL").
		Order("date ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).GetRecurringParentBlocks: %w", err)
	}
	return blocks, nil
}

func (s *Store) GetRecurringInboxItems(ctx context.Context, userID string) ([]model.InboxItem, error) {
	items := make([]model.InboxItem, 0)
	if err := s.db.NewSelect().
		Model(&items).
		Where("user_id = ?", userID).
		Where("is_recurring = ?", true).
		Where("is_dismissed = ?", false).
		Where("recurrence_rule_id IS NOT NULL").
		Order("anchor_date ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).GetRecurringInboxItems: %w", err)
	}
	return items, nil
}

func (s *Store) GetBlocksInRange(ctx context.Context, userID, startDate, endDate string) ([]model.TimeBlock, error) {
	blocks := make([]model.TimeBlock, 0)
	if err := s.db.NewSelect().
		Model(&blocks).
		Where("user_id = ?", userID).
		Where("date >= ?", startDate).
		Where("date <= ?", endDate).
		Order("date ASC", "start_time ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).GetBlocksInRange: %w", err)
	}
	return blocks, nil
}

func (s *Store) GetOccurrencesByRule(ctx context.Context, ruleID, userID string) ([]model.TimeBlock, error) {
	blocks := make([]model.TimeBlock, 0)
	if err := s.db.NewSelect().
		Model(&blocks).
		Where("recurrence_rule_id = ?", ruleID).
		Where("user_id = ?", userID).
		Where("is_recurring = ?", false).
		Order("date ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).GetOccurrencesByRule: %w", err)
	}
	return blocks, nil
}

func (s *Store) FindOccurrence(ctx context.Context, key recurrence.OccurrenceKey) (mo.Option[model.TimeBlock], error) {
	block := new(model.TimeBlock)
	err := s.db.NewSelect().
		Model(block).
		WhereAllWithDeleted().
		Where("recurrence_rule_id = ?", key.RuleID).
		Where("date = ?", key.Date).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return mo.None[model.TimeBlock](), nil
	case err != nil:
		return mo.None[model.TimeBlock](), fmt.Errorf("(*Store).FindOccurrence: %w", err)
	}
	return mo.Some(*block), nil
}

func (s *Store) CreateOccurrence(ctx context.Context, block *model.TimeBlock) error {
	if err := block.Validate(); err != nil {
		return fmt.Errorf("(*Store).CreateOccurrence: %w", err)
	}
	if block.RecurrenceRuleID == nil || block.IsRecurring {
		return fmt.Errorf("(*Store).CreateOccurrence: not an occurrence")
	}
	res, err := s.db.NewInsert().
		Model(block).
		On("CONFLICT (recurrence_rule_id, date) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("(*Store).CreateOccurrence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("(*Store).CreateOccurrence: %w", err)
	}
	if n == 0 {
		return recurrence.ErrOccurrenceExists
	}
	return nil
}

// Hard delete, so a rule edit can regenerate the dates a user had deleted
func (s *Store) DeleteOccurrences(ctx context.Context, filter recurrence.OccurrenceFilter) (int64, error) {
	if filter.RuleID == "" {
		return 0, fmt.Errorf("(*Store).DeleteOccurrences: rule id is blank")
	}
	query := s.db.NewDelete().
		Model((*model.TimeBlock)(nil)).
		ForceDelete().
		Where("recurrence_rule_id = ?", filter.RuleID).
		Where("is_recurring = ?", false)
	if filter.FromDate != "" {
		query = query.Where("date >= ?", filter.FromDate)
	}
	if filter.IncompleteOnly {
		query = query.Where("is_completed = ?", false)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("(*Store).DeleteOccurrences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("(*Store).DeleteOccurrences: %w", err)
	}
	return n, nil
}

func (s *Store) GetRule(ctx context.Context, ruleID string) (mo.Option[model.RecurrenceRule], error) {
	rule := new(model.RecurrenceRule)
	err := s.db.NewSelect().
		Model(rule).
		Where("id = ?", ruleID).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return mo.None[model.RecurrenceRule](), nil
	case err != nil:
		return mo.None[model.RecurrenceRule](), fmt.Errorf("(*Store).GetRule: %w", err)
	}
	return mo.Some(*rule), nil
}

func (s *Store) GetBlock(ctx context.Context, id string) (*model.TimeBlock, error) {
	block := new(model.TimeBlock)
	err := s.db.NewSelect().
		Model(block).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("(*Store).GetBlock: block %s: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("(*Store).GetBlock: %w", err)
	}
	return block, nil
}

func (s *Store) GetInboxItem(ctx context.Context, id string) (*model.InboxItem, error) {
	item := new(model.InboxItem)
	err := s.db.NewSelect().
		Model(item).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("(*Store).GetInboxItem: inbox item %s: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("(*Store).GetInboxItem: %w", err)
	}
	return item, nil
}

// Inbox items of a user, dismissed ones last
func (s *Store) ListInboxItems(ctx context.Context, userID string) ([]model.InboxItem, error) {
	items := make([]model.InboxItem, 0)
	if err := s.db.NewSelect().
		Model(&items).
		Where("user_id = ?", userID).
		Order("is_dismissed ASC", "created_at DESC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("(*Store).ListInboxItems: %w", err)
	}
	return items, nil
}

// Every user owning a block or an inbox item
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	userIDs := make([]string, 0)
	for _, table := range []interface{}{
		(*model.TimeBlock)(nil),
		(*model.InboxItem)(nil),
	} {
		ids := make([]string, 0)
		if err := s.db.NewSelect().
			Model(table).
			ColumnExpr("DISTINCT user_id").
			Scan(ctx, &ids); err != nil {
			return nil, fmt.Errorf("(*Store).ListUserIDs: %w", err)
		}
		userIDs = append(userIDs, ids...)
	}
	slices.Sort(userIDs)
	return slices.Compact(userIDs), nil
}

// Anchor date of a rule, read from the master block or inbox item owning it
func (s *Store) GetRuleAnchor(ctx context.Context, ruleID string) (mo.Option[time.Time], error) {
	var anchor string
	err := s.db.NewSelect().
		Model((*model.TimeBlock)(nil)).
		Column("date").
		Where("recurrence_rule_id = ?", ruleID).
		Where("is_recurring = ?", true).
		Limit(1).
		Scan(ctx, &anchor)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.NewSelect().
			Model((*model.InboxItem)(nil)).
			Column("anchor_date").
			Where("recurrence_rule_id = ?", ruleID).
			Limit(1).
			Scan(ctx, &anchor)
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return mo.None[time.Time](), nil
	case err != nil:
		return mo.None[time.Time](), fmt.Errorf("(*Store).GetRuleAnchor: %w", err)
	}
	date, err := model.ParseDate(anchor)
	if err != nil {
		return mo.None[time.Time](), fmt.Errorf("(*Store).GetRuleAnchor: %w", err)
	}
	return mo.Some(date), nil
}
