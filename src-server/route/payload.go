package route

import (
	"errors"
	"fmt"
	"time"
	"timeblock/src-server/model"
)

type BlockRespBody struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	Title              string     `json:"title"`
	Subtitle           *string    `json:"subtitle"`
	CategoryID         string     `json:"categoryId"`
	Date               string     `json:"date"`
	StartTime          string     `json:"startTime"`
	DurationMinutes    int        `json:"durationMinutes"`
	IsUrgent           bool       `json:"isUrgent"`
	IsCompleted        bool       `json:"isCompleted"`
	CompletedAt        *time.Time `json:"completedAt"`
	IsRecurring        bool       `json:"isRecurring"`
	RecurrenceRuleID   *string    `json:"recurrenceRuleId"`
	RecurrenceParentID *string    `json:"recurrenceParentId"`
}

func toBlockResp(b model.TimeBlock) BlockRespBody {
	return BlockRespBody{
		ID:                 b.ID,
		UserID:             b.UserID,
		Title:              b.Title,
		Subtitle:           b.Subtitle,
		CategoryID:         b.CategoryID,
		Date:               b.Date,
		StartTime:          b.StartTime,
		DurationMinutes:    b.DurationMinutes,
		IsUrgent:           b.IsUrgent,
		IsCompleted:        b.IsCompleted,
		CompletedAt:        b.CompletedAt,
		IsRecurring:        b.IsRecurring,
		RecurrenceRuleID:   b.RecurrenceRuleID,
		RecurrenceParentID: b.RecurrenceParentID,
	}
}

func toBlocksResp(blocks []model.TimeBlock) []BlockRespBody {
	respBody := make([]BlockRespBody, 0, len(blocks))
	for _, block := range blocks {
		respBody = append(respBody, toBlockResp(block))
	}
	return respBody
}

type RuleReqBody struct {
	Type           model.RecurrenceType `json:"type"`
	Interval       int                  `json:"interval"`
	DaysOfWeek     []int                `json:"daysOfWeek"`
	EndDate        *string              `json:"endDate"`
	MaxOccurrences *int                 `json:"maxOccurrences"`
}

func (b *RuleReqBody) toModel() (*model.RecurrenceRule, error) {
	rule := &model.RecurrenceRule{
		Type:           b.Type,
		Interval:       b.Interval,
		EndDate:        b.EndDate,
		MaxOccurrences: b.MaxOccurrences,
	}
	if rule.Interval == 0 {
		rule.Interval = 1
	}
	days := make([]time.Weekday, 0, len(b.DaysOfWeek))
	for _, day := range b.DaysOfWeek {
		if day < 0 || day > 6 {
			return nil, errors.Join(errBadRequest, fmt.Errorf("day of week %d is not in 0-6", day))
		}
		days = append(days, time.Weekday(day))
	}
	rule.SetWeekdays(days...)
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

type RuleRespBody struct {
	ID             string               `json:"id"`
	Type           model.RecurrenceType `json:"type"`
	Interval       int                  `json:"interval"`
	DaysOfWeek     []int                `json:"daysOfWeek"`
	EndDate        *string              `json:"endDate"`
	MaxOccurrences *int                 `json:"maxOccurrences"`
	Description    string               `json:"description"`
	// RFC 5545 form, empty when the rule's source is gone
	RRule string `json:"rrule,omitempty"`
}

func toRuleResp(rule *model.RecurrenceRule) RuleRespBody {
	days, _ := rule.Weekdays()
	respDays := make([]int, 0, len(days))
	for _, day := range days {
		respDays = append(respDays, int(day))
	}
	return RuleRespBody{
		ID:             rule.ID,
		Type:           rule.Type,
		Interval:       rule.Interval,
		DaysOfWeek:     respDays,
		EndDate:        rule.EndDate,
		MaxOccurrences: rule.MaxOccurrences,
		Description:    rule.Describe(),
	}
}

type InboxRespBody struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	Title            string         `json:"title"`
	Description      *string        `json:"description"`
	Priority         model.Priority `json:"priority"`
	IsRecurring      bool           `json:"isRecurring"`
	IsDismissed      bool           `json:"isDismissed"`
	DismissedAt      *time.Time     `json:"dismissedAt"`
	RecurrenceRuleID *string        `json:"recurrenceRuleId"`
	AnchorDate       string         `json:"anchorDate"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func toInboxResp(item model.InboxItem) InboxRespBody {
	return InboxRespBody{
		ID:               item.ID,
		UserID:           item.UserID,
		Title:            item.Title,
		Description:      item.Description,
		Priority:         item.Priority,
		IsRecurring:      item.IsRecurring,
		IsDismissed:      item.IsDismissed,
		DismissedAt:      item.DismissedAt,
		RecurrenceRuleID: item.RecurrenceRuleID,
		AnchorDate:       item.AnchorDate,
		CreatedAt:        item.CreatedAt,
	}
}
