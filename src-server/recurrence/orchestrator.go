package recurrence

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"timeblock/src-server/model"

	"github.com/samber/mo"
)

// Everything scheduled for a user on date: stored blocks plus the occurrences
// of every recurring source, materialized on the way.
func (e *Engine) GetByDate(ctx context.Context, userID string, date time.Time) ([]model.TimeBlock, error) {
	blocks, err := e.GetByDateRange(ctx, userID, date, date)
	if err != nil {
		return nil, fmt.Errorf("GetByDate: %w", err)
	}
	return blocks, nil
}

// Like GetByDate for every date in [start, end]. Sorted by date, then start
// time. Sources are loaded once for the whole range. Any failure fails the
// whole call; occurrences created before the failure stay persisted.
func (e *Engine) GetByDateRange(ctx context.Context, userID string, start, end time.Time) ([]model.TimeBlock, error) {
	start, end = model.Day(start), model.Day(end)
	days := model.DaysBetween(start, end) + 1
	switch {
	case days <= 0:
		return nil, fmt.Errorf("GetByDateRange: %s after %s: %w", model.FormatDate(start), model.FormatDate(end), ErrInvalidRange)
	case e.config.MaxRangeDays > 0 && days > e.config.MaxRangeDays:
		return nil, fmt.Errorf("GetByDateRange: %d days, at most %d: %w", days, e.config.MaxRangeDays, ErrRangeTooLarge)
	}

	sources, err := e.loadSources(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetByDateRange: %w", err)
	}
	stored, err := e.repo.GetBlocksInRange(ctx, userID, model.FormatDate(start), model.FormatDate(end))
	if err != nil {
		return nil, fmt.Errorf("GetByDateRange: %w", err)
	}
	byDate := make(map[string][]model.TimeBlock, days)
	for _, block := range stored {
		byDate[block.Date] = append(byDate[block.Date], block)
	}

	result := make([]model.TimeBlock, 0, len(stored))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("GetByDateRange: %w", err)
		}
		blocks := byDate[model.FormatDate(day)]
		seen := make(map[OccurrenceKey]struct{}, len(blocks))
		for i := range blocks {
			if key, ok := KeyOf(&blocks[i]); ok {
				seen[key] = struct{}{}
			}
		}
		for _, src := range sources {
			occurrence, err := src.materialize(ctx, day)
			if err != nil {
				return nil, fmt.Errorf("GetByDateRange: %w", err)
			}
			block, ok := occurrence.Get()
			if !ok {
				continue
			}
			// already listed when it was stored before this call
			key, _ := KeyOf(&block)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			blocks = append(blocks, block)
		}
		slices.SortStableFunc(blocks, compareBlocks)
		result = append(result, blocks...)
	}

	slog.Debug("range resolved",
		"userID", userID,
		"start", model.FormatDate(start),
		"end", model.FormatDate(end),
		"sources", len(sources),
		"blocks", len(result),
	)
	return result, nil
}

// Occurrences of a rule materialized so far, oldest first. The master block
// and deleted occurrences aren't included.
func (e *Engine) GetOccurrencesByRule(ctx context.Context, ruleID string) ([]model.TimeBlock, error) {
	found, err := e.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("GetOccurrencesByRule: %w", err)
	}
	rule, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("GetOccurrencesByRule: rule %s: %w", ruleID, ErrSourceMissing)
	}
	blocks, err := e.repo.GetOccurrencesByRule(ctx, rule.ID, rule.UserID)
	if err != nil {
		return nil, fmt.Errorf("GetOccurrencesByRule: %w", err)
	}
	return blocks, nil
}

func compareBlocks(a, b model.TimeBlock) int {
	return cmp.Or(
		cmp.Compare(a.Date, b.Date),
		cmp.Compare(a.StartTime, b.StartTime),
		cmp.Compare(a.Title, b.Title),
		cmp.Compare(a.ID, b.ID),
	)
}

type boundSource struct {
	materialize func(ctx context.Context, date time.Time) (mo.Option[model.TimeBlock], error)
}

// Every recurring source of the user, paired with its rule. Sources whose rule
// is gone are skipped.
func (e *Engine) loadSources(ctx context.Context, userID string) ([]boundSource, error) {
	masters, err := e.repo.GetRecurringParentBlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loadSources: %w", err)
	}
	items, err := e.repo.GetRecurringInboxItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loadSources: %w", err)
	}

	sources := make([]boundSource, 0, len(masters)+len(items))
	for i := range masters {
		master := &masters[i]
		rule, err := e.ruleOf(ctx, BlockSource{Master: master})
		if err != nil {
			return nil, fmt.Errorf("loadSources: %w", err)
		}
		if rule == nil {
			continue
		}
		sources = append(sources, boundSource{
			materialize: func(ctx context.Context, date time.Time) (mo.Option[model.TimeBlock], error) {
				return e.MaterializeBlockOccurrence(ctx, master, rule, date)
			},
		})
	}
	for i := range items {
		item := &items[i]
		if item.IsDismissed {
			continue
		}
		rule, err := e.ruleOf(ctx, InboxSource{Item: item})
		if err != nil {
			return nil, fmt.Errorf("loadSources: %w", err)
		}
		if rule == nil {
			continue
		}
		sources = append(sources, boundSource{
			materialize: func(ctx context.Context, date time.Time) (mo.Option[model.TimeBlock], error) {
				return e.MaterializeInboxOccurrence(ctx, item, rule, date)
			},
		})
	}
	return sources, nil
}

// nil when the source has no live rule
func (e *Engine) ruleOf(ctx context.Context, src Source) (*model.RecurrenceRule, error) {
	ruleID := src.RuleID()
	if ruleID == "" {
		slog.Warn("recurring source without a rule, skipping",
			"source", string(src.Kind()),
			"sourceID", src.ID(),
		)
		return nil, nil
	}
	found, err := e.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	rule, ok := found.Get()
	if !ok {
		slog.Warn("recurring source skipped",
			"source", string(src.Kind()),
			"sourceID", src.ID(),
			"ruleID", ruleID,
			"error", ErrSourceMissing,
		)
		return nil, nil
	}
	return &rule, nil
}
