package utils

import (
	"fmt"
	"strings"
	"time"
	"timeblock/src-server/model"

	"github.com/olebedev/when"
)

// Parse a calendar date: YYYY-MM-DD first, then natural language such as
// "today", "next monday" or "in 3 days" relative to now in loc.
func ParseDateInput(parser *when.Parser, input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("ParseDateInput: date is blank")
	}
	if date, err := model.ParseDate(input); err == nil {
		return date, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	switch strings.ToLower(input) {
	case "today":
		return model.Day(now), nil
	case "tomorrow":
		return model.Day(now).AddDate(0, 0, 1), nil
	case "yesterday":
		return model.Day(now).AddDate(0, 0, -1), nil
	}
	if parser == nil {
		return time.Time{}, fmt.Errorf("ParseDateInput: %q is not a YYYY-MM-DD date", input)
	}
	result, err := parser.Parse(input, now)
	switch {
	case err != nil:
		return time.Time{}, fmt.Errorf("ParseDateInput: %w", err)
	case result == nil:
		return time.Time{}, fmt.Errorf("ParseDateInput: can't understand %q", input)
	}
	return model.Day(result.Time.In(loc)), nil
}
