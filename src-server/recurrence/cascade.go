package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"timeblock/src-server/model"
)

// Remove the future, incomplete occurrences of a rule whose source is being
// deleted or stops recurring. Occurrences dated before today and completed
// ones are history and stay. Returns how many rows were deleted.
//
// Callers delete or update the source in the same transaction, see
// WithRepository.
func (e *Engine) OnSourceDeleted(ctx context.Context, ruleID string, today time.Time) (int64, error) {
	n, err := e.cascade(ctx, ruleID, today)
	if err != nil {
		return 0, fmt.Errorf("OnSourceDeleted: %w", err)
	}
	slog.Info("recurrence source deleted", "ruleID", ruleID, "occurrencesDeleted", n)
	return n, nil
}

// Same cleanup as OnSourceDeleted, for a rule whose cadence was edited. The
// dropped occurrences are materialized again, under the new cadence, as their
// dates are viewed.
func (e *Engine) OnRuleChanged(ctx context.Context, ruleID string, today time.Time) (int64, error) {
	n, err := e.cascade(ctx, ruleID, today)
	if err != nil {
		return 0, fmt.Errorf("OnRuleChanged: %w", err)
	}
	slog.Info("recurrence rule changed", "ruleID", ruleID, "occurrencesDeleted", n)
	return n, nil
}

func (e *Engine) cascade(ctx context.Context, ruleID string, today time.Time) (int64, error) {
	if ruleID == "" {
		return 0, fmt.Errorf("rule id is blank: %w", ErrSourceMissing)
	}
	n, err := e.repo.DeleteOccurrences(ctx, OccurrenceFilter{
		RuleID:         ruleID,
		FromDate:       model.FormatDate(today),
		IncompleteOnly: true,
	})
	if err != nil {
		return 0, err
	}
	e.config.Recorder.CascadeDeleted(n)
	return n, nil
}
