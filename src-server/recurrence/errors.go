package recurrence

import (
	"errors"
	"timeblock/src-server/model"
)

var (
	// rule fails validation: non-positive interval, weekly without days, ...
	ErrInvalidRule = model.ErrInvalidRule
	// returned by Repository.CreateOccurrence when the (rule, date) key is taken
	ErrOccurrenceExists = errors.New("occurrence already exists")
	// the rule or the source it belongs to is gone
	ErrSourceMissing = errors.New("recurrence source missing")
	// materialization was asked of something that isn't a recurring source
	ErrNotRecurring = errors.New("source is not recurring")
	ErrInvalidRange  = errors.New("invalid date range")
	ErrRangeTooLarge = errors.New("date range too large")
)
