// Package calendar exports task definitions and holidays as iCalendar data.
package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/recurrence"
)

// ErrEmpty is returned when there is nothing to put in the calendar.
var ErrEmpty = errors.New("calendar: nothing to export")

const productID = "-//taskify//Task Calendar//EN"

// EventDuration is the length given to each exported task occurrence.
const EventDuration = 30 * time.Minute

func newCalendar(name string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if name != "" {
		cal.Props.SetText(ical.PropName, name)
	}
	return cal
}

// ExportDefinitions writes one recurring VEVENT per definition. Disabled
// definitions are left out.
func ExportDefinitions(w io.Writer, defs []model.TaskDefinition, stamp time.Time) error {
	cal := newCalendar("Recurring tasks")
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		rr, err := recurrence.RRule(def.Rule, def.DueAt)
		if err != nil {
			return fmt.Errorf("calendar: definition %s: %w", def.ID, err)
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, def.ID+"@taskify")
		event.Props.SetText(ical.PropSummary, def.Template.Title)
		if def.Description != "" {
			event.Props.SetText(ical.PropDescription, def.Description)
		}
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, def.DueAt)
		event.Props.SetDateTime(ical.PropDateTimeEnd, def.DueAt.Add(EventDuration))
		setRaw(event.Props, ical.PropRecurrenceRule, rr)
		if exc, ok := def.Rule.ExceptionDate.Get(); ok {
			y, m, d := exc.Date()
			event.Props.SetDateTime(ical.PropExceptionDates, time.Date(y, m, d, def.DueAt.Hour(), def.DueAt.Minute(), def.DueAt.Second(), 0, def.DueAt.Location()))
		}
		if len(def.Template.Tags) > 0 {
			setRaw(event.Props, ical.PropCategories, strings.Join(def.Template.Tags, ","))
		}
		if def.Template.Assignee != "" {
			event.Props.SetText("X-TASKIFY-ASSIGNEE", def.Template.Assignee)
		}
		event.Props.SetText("X-TASKIFY-PRIORITY", string(def.Template.Priority))
		cal.Children = append(cal.Children, event.Component)
	}
	return encode(w, cal)
}

// ExportHolidays writes one all-day VEVENT per holiday.
func ExportHolidays(w io.Writer, listName string, holidays []model.Holiday, stamp time.Time) error {
	cal := newCalendar(listName)
	for _, h := range holidays {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@taskify", h.ListID, h.Date.Format("20060102")))
		summary := h.Description
		if summary == "" {
			summary = "Holiday"
		}
		event.Props.SetText(ical.PropSummary, summary)
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDate(ical.PropDateTimeStart, h.Date)
		event.Props.SetDate(ical.PropDateTimeEnd, h.Date.AddDate(0, 0, 1))
		if h.WeeklyOff {
			setRaw(event.Props, ical.PropCategories, "WEEKLY-OFF")
		}
		setRaw(event.Props, ical.PropTransparency, "TRANSPARENT")
		cal.Children = append(cal.Children, event.Component)
	}
	return encode(w, cal)
}

// setRaw stores a value that must not be text-escaped (lists, RRULE).
func setRaw(props ical.Props, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	props.Set(p)
}

func encode(w io.Writer, cal *ical.Calendar) error {
	if len(cal.Children) == 0 {
		return ErrEmpty
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("calendar: encode: %w", err)
	}
	return nil
}
