package route

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"timeblock/src-server/model"
	"timeblock/src-server/utils"

	"github.com/emersion/go-ical"
)

const icalProductID = "-//timeblock//NONSGML v1.0//EN"

// Agenda of a user as a VCALENDAR with one VEVENT per block
func BlocksToIcal(blocks []model.TimeBlock, loc *time.Location, stamp time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, icalProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if loc == nil {
		loc = time.UTC
	}
	cal.Children = append(cal.Children, timezoneComponent(loc, stamp))
	for _, block := range blocks {
		start, end, err := block.Span(loc)
		if err != nil {
			return nil, fmt.Errorf("BlocksToIcal: %w", err)
		}
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, block.ID)
		event.Props.SetText(ical.PropSummary, block.Title)
		if block.Subtitle != nil {
			event.Props.SetText(ical.PropDescription, *block.Subtitle)
		}
		event.Props.SetText(ical.PropCategories, block.CategoryID)
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, end)
		if block.IsUrgent {
			event.Props.SetText(ical.PropPriority, "1")
		}
		if block.RecurrenceParentID != nil {
			event.Props.SetText(ical.PropRelatedTo, *block.RecurrenceParentID)
		}
		cal.Children = append(cal.Children, event.Component)
	}
	return cal, nil
}

// VTIMEZONE pinned to the zone's offset at the given instant, DST rules omitted
func timezoneComponent(loc *time.Location, at time.Time) *ical.Component {
	_, offset := at.In(loc).Zone()
	sign := '+'
	if offset < 0 {
		sign, offset = '-', -offset
	}
	tzOffset := fmt.Sprintf("%c%02d%02d", sign, offset/3600, offset%3600/60)

	standard := ical.NewComponent(ical.CompTimezoneStandard)
	dtstart := ical.NewProp(ical.PropDateTimeStart)
	dtstart.Value = "19700101T000000"
	standard.Props.Set(dtstart)
	standard.Props.SetText(ical.PropTimezoneOffsetFrom, tzOffset)
	standard.Props.SetText(ical.PropTimezoneOffsetTo, tzOffset)

	tz := ical.NewComponent(ical.CompTimezone)
	tz.Props.SetText(ical.PropTimezoneID, loc.String())
	tz.Children = append(tz.Children, standard)
	return tz
}

func Ical(muxer *http.ServeMux, as *utils.AppState) {
	// subscribable feed; defaults to the next 30 days
	muxer.HandleFunc("GET /ical/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		start, err := queryDate(as, r, "start", as.Config.Today())
		if err != nil {
			writeError(w, r, err)
			return
		}
		end, err := queryDate(as, r, "end", start.AddDate(0, 0, 29))
		if err != nil {
			writeError(w, r, err)
			return
		}
		blocks, err := as.Engine.GetByDateRange(r.Context(), r.PathValue("user_id"), start, end)
		if err != nil {
			writeError(w, r, err)
			return
		}
		cal, err := BlocksToIcal(blocks, as.Config.GetLocation(), time.Now())
		if err != nil {
			writeError(w, r, err)
			return
		}

		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			slog.Warn("can't write to response", "where", "route/ical.go", "error", err)
		}
	})
}
