package route

import (
	"net/http"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/utils"
)

func Inbox(muxer *http.ServeMux, as *utils.AppState) {
	muxer.HandleFunc("GET /users/{user_id}/inbox", func(w http.ResponseWriter, r *http.Request) {
		items, err := as.Store.ListInboxItems(r.Context(), r.PathValue("user_id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respBody := make([]InboxRespBody, 0, len(items))
		for _, item := range items {
			respBody = append(respBody, toInboxResp(item))
		}
		writeJSON(w, http.StatusOK, respBody)
	})

	type CreateInboxReqBody struct {
		Title       string         `json:"title"`
		Description *string        `json:"description"`
		Priority    model.Priority `json:"priority"`
		// defaults to today
		AnchorDate string       `json:"anchorDate"`
		Recurrence *RuleReqBody `json:"recurrence"`
	}

	// capture an inbox item; with recurrence set it shows up on the agenda on
	// every date the rule fires
	muxer.HandleFunc("POST /users/{user_id}/inbox", func(w http.ResponseWriter, r *http.Request) {
		var reqBody CreateInboxReqBody
		if err := decodeBody(r, &reqBody); err != nil {
			writeError(w, r, err)
			return
		}
		anchor := as.Config.Today()
		if reqBody.AnchorDate != "" {
			parsed, err := utils.ParseDateInput(as.When, reqBody.AnchorDate, time.Now(), as.Config.GetLocation())
			if err != nil {
				writeError(w, r, err)
				return
			}
			anchor = parsed
		}
		item := &model.InboxItem{
			UserID:      r.PathValue("user_id"),
			Title:       utils.CleanupString(reqBody.Title),
			Description: utils.CleanupOptionalString(reqBody.Description),
			Priority:    reqBody.Priority,
			IsRecurring: reqBody.Recurrence != nil,
			AnchorDate:  model.FormatDate(anchor),
		}
		if item.Priority == "" {
			item.Priority = model.PriorityMedium
		}

		var rule *model.RecurrenceRule
		if reqBody.Recurrence != nil {
			var err error
			if rule, err = reqBody.Recurrence.toModel(); err != nil {
				writeError(w, r, err)
				return
			}
		}
		if err := as.Store.CreateInboxItem(r.Context(), item, rule); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInboxResp(*item))
	})

	muxer.HandleFunc("POST /inbox/{id}/dismiss", func(w http.ResponseWriter, r *http.Request) {
		item, err := as.Store.DismissInboxItem(r.Context(), r.PathValue("id"), time.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toInboxResp(*item))
	})

	muxer.HandleFunc("DELETE /inbox/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := as.Store.DeleteInboxItem(r.Context(), as.Engine, r.PathValue("id"), as.Config.Today()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
