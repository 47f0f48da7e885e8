package generator

import (
	"fmt"
	"time"

	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/storage"
	"github.com/samber/mo"
)

// DefinitionFromRow rebuilds a definition from its stored form. Due and
// watermark instants are moved into loc; end and exception dates are calendar
// dates and keep their day in loc.
func DefinitionFromRow(row storage.TaskDefinition, loc *time.Location) (model.TaskDefinition, error) {
	if loc == nil {
		loc = time.UTC
	}
	weekdays, err := model.ParseWeekdays(row.Weekdays)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("definition %s: weekdays: %w", row.ID, err)
	}
	monthDays, err := model.ParseMonthDays(row.MonthDays)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("definition %s: month days: %w", row.ID, err)
	}

	def := model.TaskDefinition{
		ID:          row.ID,
		Description: row.Description,
		Template: model.Template{
			Title:      row.Title,
			Assignee:   row.Assignee,
			Priority:   model.Priority(row.Priority),
			Department: row.Department,
			Branch:     row.Branch,
			Tags:       row.Tags,
		},
		Rule: model.RecurrenceRule{
			Frequency:     model.Frequency(row.Frequency),
			Interval:      row.IntervalValue,
			EndDate:       localDate(row.EndDate, loc),
			Weekdays:      weekdays,
			MonthDays:     monthDays,
			NthWeek:       row.NthWeek,
			ExceptionDate: localDate(row.ExceptionDate, loc),
		},
		DueAt:         row.DueAt.In(loc),
		HolidayListID: row.HolidayListID,
		SkipHolidays:  row.SkipHolidays,
		Enabled:       row.Enabled,
		CreatedAt:     row.CreatedAt,
	}
	if row.GeneratedUntil != nil {
		wm := row.GeneratedUntil.In(loc)
		def.Watermark = &wm
	}
	return def, nil
}

// DefinitionToRow is the inverse of DefinitionFromRow.
func DefinitionToRow(def model.TaskDefinition) storage.TaskDefinition {
	row := storage.TaskDefinition{
		ID:             def.ID,
		Title:          def.Template.Title,
		Description:    def.Description,
		Assignee:       def.Template.Assignee,
		Priority:       string(def.Template.Priority),
		Department:     def.Template.Department,
		Branch:         def.Template.Branch,
		Tags:           def.Template.Tags,
		Frequency:      string(def.Rule.Frequency),
		IntervalValue:  def.Rule.IntervalOrDefault(),
		Weekdays:       model.FormatWeekdays(def.Rule.Weekdays),
		MonthDays:      model.FormatMonthDays(def.Rule.MonthDays),
		NthWeek:        def.Rule.NthWeek,
		DueAt:          def.DueAt,
		GeneratedUntil: def.Watermark,
		HolidayListID:  def.HolidayListID,
		SkipHolidays:   def.SkipHolidays,
		Enabled:        def.Enabled,
		CreatedAt:      def.CreatedAt,
	}
	if end, ok := def.Rule.EndDate.Get(); ok {
		d := utcDate(end)
		row.EndDate = &d
	}
	if exc, ok := def.Rule.ExceptionDate.Get(); ok {
		d := utcDate(exc)
		row.ExceptionDate = &d
	}
	return row
}

func InstanceToRow(inst model.TaskInstance) storage.TaskInstance {
	return storage.TaskInstance{
		ID:           inst.ID,
		DefinitionID: inst.DefinitionID,
		Title:        inst.Template.Title,
		Assignee:     inst.Template.Assignee,
		Priority:     string(inst.Template.Priority),
		Department:   inst.Template.Department,
		Branch:       inst.Template.Branch,
		Tags:         inst.Template.Tags,
		Status:       string(inst.Status),
		DueAt:        inst.DueAt,
		CreatedAt:    inst.CreatedAt,
		CompletedAt:  inst.CompletedAt,
	}
}

func localDate(v *time.Time, loc *time.Location) mo.Option[time.Time] {
	if v == nil {
		return mo.None[time.Time]()
	}
	y, m, d := v.Date()
	return mo.Some(time.Date(y, m, d, 0, 0, 0, 0, loc))
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// atClock returns day's calendar date at ref's wall clock, in ref's location.
func atClock(day, ref time.Time) time.Time {
	y, m, d := day.In(ref.Location()).Date()
	return time.Date(y, m, d, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}
