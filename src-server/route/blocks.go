package route

import (
	"net/http"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/utils"
)

func Blocks(muxer *http.ServeMux, as *utils.AppState) {
	// everything scheduled on one day, recurring occurrences included
	muxer.HandleFunc("GET /users/{user_id}/blocks", func(w http.ResponseWriter, r *http.Request) {
		date, err := queryDate(as, r, "date", as.Config.Today())
		if err != nil {
			writeError(w, r, err)
			return
		}
		blocks, err := as.Engine.GetByDate(r.Context(), r.PathValue("user_id"), date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlocksResp(blocks))
	})

	// same for an inclusive date range
	muxer.HandleFunc("GET /users/{user_id}/blocks/range", func(w http.ResponseWriter, r *http.Request) {
		today := as.Config.Today()
		start, err := queryDate(as, r, "start", today)
		if err != nil {
			writeError(w, r, err)
			return
		}
		end, err := queryDate(as, r, "end", start.AddDate(0, 0, 6))
		if err != nil {
			writeError(w, r, err)
			return
		}
		blocks, err := as.Engine.GetByDateRange(r.Context(), r.PathValue("user_id"), start, end)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlocksResp(blocks))
	})

	type CreateBlockReqBody struct {
		Title           string       `json:"title"`
		Subtitle        *string      `json:"subtitle"`
		CategoryID      string       `json:"categoryId"`
		Date            string       `json:"date"`
		StartTime       string       `json:"startTime"`
		DurationMinutes int          `json:"durationMinutes"`
		IsUrgent        bool         `json:"isUrgent"`
		Recurrence      *RuleReqBody `json:"recurrence"`
	}

	// create a one-off block, or a recurring master block when recurrence is set
	muxer.HandleFunc("POST /users/{user_id}/blocks", func(w http.ResponseWriter, r *http.Request) {
		var reqBody CreateBlockReqBody
		if err := decodeBody(r, &reqBody); err != nil {
			writeError(w, r, err)
			return
		}
		date := as.Config.Today()
		if reqBody.Date != "" {
			parsed, err := utils.ParseDateInput(as.When, reqBody.Date, time.Now(), as.Config.GetLocation())
			if err != nil {
				writeError(w, r, err)
				return
			}
			date = parsed
		}
		block := &model.TimeBlock{
			UserID:          r.PathValue("user_id"),
			Title:           utils.CleanupString(reqBody.Title),
			Subtitle:        utils.CleanupOptionalString(reqBody.Subtitle),
			CategoryID:      reqBody.CategoryID,
			Date:            model.FormatDate(date),
			StartTime:       reqBody.StartTime,
			DurationMinutes: reqBody.DurationMinutes,
			IsUrgent:        reqBody.IsUrgent,
		}
		if block.CategoryID == "" {
			block.CategoryID = model.FocusCategoryID
		}

		if reqBody.Recurrence == nil {
			if err := as.Store.CreateBlock(r.Context(), block); err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, toBlockResp(*block))
			return
		}
		rule, err := reqBody.Recurrence.toModel()
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := as.Store.CreateRecurringBlock(r.Context(), block, rule); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResp(*block))
	})

	type CompleteBlockReqBody struct {
		Completed *bool `json:"completed"`
	}

	// mark a block done; {"completed": false} reopens it
	muxer.HandleFunc("POST /blocks/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		completed := true
		if r.ContentLength != 0 {
			var reqBody CompleteBlockReqBody
			if err := decodeBody(r, &reqBody); err != nil {
				writeError(w, r, err)
				return
			}
			if reqBody.Completed != nil {
				completed = *reqBody.Completed
			}
		}
		block, err := as.Store.SetBlockCompleted(r.Context(), r.PathValue("id"), completed, time.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResp(*block))
	})

	// delete a block; on a master block this ends the whole series
	muxer.HandleFunc("DELETE /blocks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := as.Store.DeleteBlock(r.Context(), as.Engine, r.PathValue("id"), as.Config.Today()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// stop a master block from recurring, it stays as a one-off block
	muxer.HandleFunc("DELETE /blocks/{id}/recurrence", func(w http.ResponseWriter, r *http.Request) {
		block, err := as.Store.RemoveBlockRecurrence(r.Context(), as.Engine, r.PathValue("id"), as.Config.Today())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResp(*block))
	})
}
