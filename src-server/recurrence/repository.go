package recurrence

import (
	"context"
	"timeblock/src-server/model"

	"github.com/samber/mo"
)

// Which generated occurrences of a rule to delete. Master blocks are never
// matched.
type OccurrenceFilter struct {
	RuleID string
	// YYYY-MM-DD, inclusive; empty matches every date
	FromDate string
	// keep completed occurrences
	IncompleteOnly bool
}

// Persistence the engine needs. Every write is durable when the call returns.
type Repository interface {
	// Recurring master blocks of a user
	GetRecurringParentBlocks(ctx context.Context, userID string) ([]model.TimeBlock, error)
	// Recurring, non-dismissed inbox items of a user
	GetRecurringInboxItems(ctx context.Context, userID string) ([]model.InboxItem, error)
	// Live blocks of a user dated in [startDate, endDate]
	GetBlocksInRange(ctx context.Context, userID, startDate, endDate string) ([]model.TimeBlock, error)
	// Live generated occurrences of a rule
	GetOccurrencesByRule(ctx context.Context, ruleID, userID string) ([]model.TimeBlock, error)
	// The block holding key, soft-deleted ones included
	FindOccurrence(ctx context.Context, key OccurrenceKey) (mo.Option[model.TimeBlock], error)
	// Insert an occurrence, ErrOccurrenceExists when its key is taken
	CreateOccurrence(ctx context.Context, block *model.TimeBlock) error
	DeleteOccurrences(ctx context.Context, filter OccurrenceFilter) (int64, error)
	// A live rule by id
	GetRule(ctx context.Context, ruleID string) (mo.Option[model.RecurrenceRule], error)
}

// Engine counters, see the metric package
type Recorder interface {
	Materialized(kind SourceKind)
	Collided(kind SourceKind)
	CascadeDeleted(n int64)
}

type nopRecorder struct{}

func (nopRecorder) Materialized(SourceKind) {}
func (nopRecorder) Collided(SourceKind)     {}
func (nopRecorder) CascadeDeleted(int64)    {}
