package route

import (
	"context"
	"fmt"
	"net/http"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"
	"timeblock/src-server/store"
	"timeblock/src-server/utils"
)

func Rules(muxer *http.ServeMux, as *utils.AppState) {
	getRule := func(ctx context.Context, id string) (*model.RecurrenceRule, error) {
		found, err := as.Store.GetRule(ctx, id)
		if err != nil {
			return nil, err
		}
		rule, ok := found.Get()
		if !ok {
			return nil, fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
		}
		return &rule, nil
	}

	withRRule := func(ctx context.Context, rule *model.RecurrenceRule) (RuleRespBody, error) {
		respBody := toRuleResp(rule)
		anchor, err := as.Store.GetRuleAnchor(ctx, rule.ID)
		if err != nil {
			return respBody, err
		}
		if date, ok := anchor.Get(); ok {
			rrule, err := rule.ToRRule(date)
			if err != nil {
				return respBody, err
			}
			respBody.RRule = rrule.String()
		}
		return respBody, nil
	}

	muxer.HandleFunc("GET /rules/{id}", func(w http.ResponseWriter, r *http.Request) {
		rule, err := getRule(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respBody, err := withRRule(r.Context(), rule)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	// dates the rule fires on in [start, end], without materializing anything
	muxer.HandleFunc("GET /rules/{id}/preview", func(w http.ResponseWriter, r *http.Request) {
		rule, err := getRule(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		anchor, err := as.Store.GetRuleAnchor(r.Context(), rule.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		anchorDate, ok := anchor.Get()
		if !ok {
			writeError(w, r, fmt.Errorf("rule %s: %w", rule.ID, recurrence.ErrSourceMissing))
			return
		}
		start, err := queryDate(as, r, "start", as.Config.Today())
		if err != nil {
			writeError(w, r, err)
			return
		}
		end, err := queryDate(as, r, "end", start.AddDate(0, 0, 30))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if days := model.DaysBetween(start, end) + 1; days > as.Config.GetMaxRangeDays() {
			writeError(w, r, fmt.Errorf("%d days: %w", days, recurrence.ErrRangeTooLarge))
			return
		}
		dates, err := recurrence.Between(rule, anchorDate, start, end)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respBody := make([]string, 0, len(dates))
		for _, date := range dates {
			respBody = append(respBody, model.FormatDate(date))
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	muxer.HandleFunc("GET /rules/{id}/occurrences", func(w http.ResponseWriter, r *http.Request) {
		blocks, err := as.Engine.GetOccurrencesByRule(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlocksResp(blocks))
	})

	// replace the cadence; future incomplete occurrences are regenerated
	// lazily under the new one
	muxer.HandleFunc("PUT /rules/{id}", func(w http.ResponseWriter, r *http.Request) {
		var reqBody RuleReqBody
		if err := decodeBody(r, &reqBody); err != nil {
			writeError(w, r, err)
			return
		}
		patch, err := reqBody.toModel()
		if err != nil {
			writeError(w, r, err)
			return
		}
		rule, err := as.Store.UpdateRecurrence(r.Context(), as.Engine, r.PathValue("id"), patch, as.Config.Today())
		if err != nil {
			writeError(w, r, err)
			return
		}
		respBody, err := withRRule(r.Context(), rule)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, respBody)
	})
}
