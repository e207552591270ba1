package recurrence

import (
	"time"
	"timeblock/src-server/model"
)

// Identity of a generated occurrence. At most one row exists per key; the
// database enforces it with a unique index on (recurrence_rule_id, date).
type OccurrenceKey struct {
	RuleID string
	Date   string // YYYY-MM-DD
}

func NewOccurrenceKey(ruleID string, date time.Time) OccurrenceKey {
	return OccurrenceKey{RuleID: ruleID, Date: model.FormatDate(date)}
}

// Key of a block that belongs to a rule, false for one-off blocks
func KeyOf(block *model.TimeBlock) (OccurrenceKey, bool) {
	if block == nil || block.RecurrenceRuleID == nil {
		return OccurrenceKey{}, false
	}
	return OccurrenceKey{RuleID: *block.RecurrenceRuleID, Date: block.Date}, true
}

func (k OccurrenceKey) String() string {
	return k.RuleID + "@" + k.Date
}
