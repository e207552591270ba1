package metric

import (
	"context"
	"time"
	"timeblock/src-server/recurrence"
	"timeblock/src-server/utils"
)

// Time an occurrence lookup that can't match; it walks the
// (recurrence_rule_id, date) index every materialization goes through
func occurrenceLookup(as *utils.AppState) (time.Duration, error) {
	start := time.Now()
	if _, err := as.Store.FindOccurrence(context.Background(), recurrence.OccurrenceKey{}); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
