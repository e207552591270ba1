package route

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/recurrence"
	"timeblock/src-server/store"
	"timeblock/src-server/utils"
)

// request is malformed: bad JSON, unparsable dates, ...
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, body any) {
	respBodyJson, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Can't marshal response body"))
		slog.Error("can't marshal response body", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(respBodyJson)
}

// Map an error to a status code; 5xx details are logged, not sent
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, recurrence.ErrSourceMissing):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, recurrence.ErrInvalidRule),
		errors.Is(err, recurrence.ErrInvalidRange),
		errors.Is(err, recurrence.ErrRangeTooLarge),
		errors.Is(err, recurrence.ErrNotRecurring):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// Date from a query param, falling back to fallback when absent
func queryDate(as *utils.AppState, r *http.Request, name string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	date, err := utils.ParseDateInput(as.When, value, time.Now(), as.Config.GetLocation())
	if err != nil {
		return time.Time{}, errors.Join(errBadRequest, err)
	}
	return date, nil
}
