// Package seed loads holiday lists, task definitions and their notification
// rules from a YAML document into the store.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kausik11/taskify/internal/generator"
	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/permissions"
	"github.com/kausik11/taskify/internal/storage"
	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

type File struct {
	HolidayLists []HolidayList `yaml:"holiday_lists"`
	Definitions  []Definition  `yaml:"definitions"`
}

type HolidayList struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	WeeklyOff []string  `yaml:"weekly_off"`
	Holidays  []Holiday `yaml:"holidays"`
}

type Holiday struct {
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
}

type Definition struct {
	ID            string         `yaml:"id"`
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	Assignee      string         `yaml:"assignee"`
	Priority      string         `yaml:"priority"`
	Department    string         `yaml:"department"`
	Branch        string         `yaml:"branch"`
	Tags          []string       `yaml:"tags"`
	Frequency     string         `yaml:"frequency"`
	Interval      int            `yaml:"interval"`
	Weekdays      []string       `yaml:"weekdays"`
	MonthDays     []int          `yaml:"month_days"`
	NthWeek       int            `yaml:"nth_week"`
	Due           string         `yaml:"due"`
	EndDate       string         `yaml:"end_date"`
	ExceptionDate string         `yaml:"exception_date"`
	HolidayList   string         `yaml:"holiday_list"`
	SkipHolidays  bool           `yaml:"skip_holidays"`
	Enabled       *bool          `yaml:"enabled"`
	Notifications []Notification `yaml:"notifications"`
}

type Notification struct {
	ID         string `yaml:"id"`
	Channel    string `yaml:"channel"`
	Phone      string `yaml:"phone"`
	Template   string `yaml:"template"`
	DaysBefore int    `yaml:"days_before"`
	SendAt     string `yaml:"send_at"`
	Enabled    *bool  `yaml:"enabled"`
}

func Parse(data []byte) (File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, errors.New("seed: document is empty")
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	return f, nil
}

func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("seed: %s: %w", path, err)
	}
	return f, nil
}

type Store interface {
	GetHolidayList(ctx context.Context, id string) (storage.HolidayList, error)
	CreateHolidayList(ctx context.Context, in storage.HolidayList) error
	UpdateHolidayList(ctx context.Context, in storage.HolidayList) error
	ListHolidays(ctx context.Context, filter storage.HolidayListFilter) ([]storage.Holiday, error)
	CreateHoliday(ctx context.Context, in storage.Holiday) error

	GetDefinition(ctx context.Context, id string) (storage.TaskDefinition, error)
	CreateDefinition(ctx context.Context, in storage.TaskDefinition) error
	UpdateDefinition(ctx context.Context, in storage.TaskDefinition) error

	GetNotificationRule(ctx context.Context, id string) (storage.NotificationRule, error)
	CreateNotificationRule(ctx context.Context, in storage.NotificationRule) error
	UpdateNotificationRule(ctx context.Context, in storage.NotificationRule) error
}

type Authorizer interface {
	Require(ctx context.Context, doctype string, perm permissions.Permission) error
}

type Result struct {
	HolidayLists  int
	Holidays      int
	Definitions   int
	Notifications int
}

// Importer writes a File to the store. Existing records with the same id are
// updated in place; generation watermarks are never touched.
type Importer struct {
	store Store
	auth  Authorizer
	loc   *time.Location
}

func NewImporter(store Store, auth Authorizer, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{store: store, auth: auth, loc: loc}
}

func (im *Importer) Apply(ctx context.Context, f File, now time.Time) (Result, error) {
	var res Result
	if len(f.HolidayLists) > 0 {
		if err := im.auth.Require(ctx, permissions.DoctypeHolidayList, permissions.Write); err != nil {
			return res, err
		}
	}
	if len(f.Definitions) > 0 {
		if err := im.auth.Require(ctx, permissions.DoctypeTask, permissions.Write); err != nil {
			return res, err
		}
	}

	for _, hl := range f.HolidayLists {
		n, err := im.applyHolidayList(ctx, hl, now)
		if err != nil {
			return res, fmt.Errorf("seed: holiday list %s: %w", hl.ID, err)
		}
		res.HolidayLists++
		res.Holidays += n
	}
	for _, d := range f.Definitions {
		n, err := im.applyDefinition(ctx, d, now)
		if err != nil {
			return res, fmt.Errorf("seed: definition %s: %w", d.ID, err)
		}
		res.Definitions++
		res.Notifications += n
	}
	return res, nil
}

func (im *Importer) applyHolidayList(ctx context.Context, in HolidayList, now time.Time) (int, error) {
	offs, err := model.ParseWeekdays(strings.Join(in.WeeklyOff, ","))
	if err != nil {
		return 0, err
	}
	list := model.HolidayList{ID: in.ID, Name: in.Name, WeeklyOff: offs}
	if err := list.Validate(); err != nil {
		return 0, err
	}

	row := storage.HolidayList{ID: list.ID, Name: list.Name, WeeklyOff: model.FormatWeekdays(list.WeeklyOff), CreatedAt: now.UTC()}
	existing, err := im.store.GetHolidayList(ctx, list.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = im.store.CreateHolidayList(ctx, row)
	case err == nil:
		row.FromDate, row.ToDate = existing.FromDate, existing.ToDate
		err = im.store.UpdateHolidayList(ctx, row)
	}
	if err != nil {
		return 0, err
	}

	current, err := im.store.ListHolidays(ctx, storage.HolidayListFilter{ListID: list.ID})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(current))
	for _, h := range current {
		seen[h.Date.Format(time.DateOnly)] = true
	}
	added := 0
	for _, h := range in.Holidays {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(h.Date))
		if err != nil {
			return added, fmt.Errorf("holiday date %q: %w", h.Date, err)
		}
		if seen[date.Format(time.DateOnly)] {
			continue
		}
		if err := im.store.CreateHoliday(ctx, storage.Holiday{ListID: list.ID, Date: date, Description: h.Description}); err != nil {
			return added, err
		}
		seen[date.Format(time.DateOnly)] = true
		added++
	}
	return added, nil
}

func (im *Importer) applyDefinition(ctx context.Context, in Definition, now time.Time) (int, error) {
	def, err := im.toModel(in, now)
	if err != nil {
		return 0, err
	}
	if err := def.Validate(); err != nil {
		return 0, err
	}
	row := generator.DefinitionToRow(def)

	_, err = im.store.GetDefinition(ctx, def.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = im.store.CreateDefinition(ctx, row)
	case err == nil:
		err = im.store.UpdateDefinition(ctx, row)
	}
	if err != nil {
		return 0, err
	}

	for i, n := range in.Notifications {
		rule := model.NotificationRule{
			ID:           n.ID,
			DefinitionID: def.ID,
			Channel:      model.Channel(n.Channel),
			Phone:        n.Phone,
			Template:     n.Template,
			DaysBefore:   n.DaysBefore,
			SendAt:       n.SendAt,
			Enabled:      n.Enabled == nil || *n.Enabled,
		}
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s-n%d", def.ID, i+1)
		}
		if rule.Channel == "" {
			rule.Channel = model.ChannelWhatsApp
		}
		if err := rule.Validate(); err != nil {
			return i, err
		}
		ruleRow := storage.NotificationRule{
			ID:           rule.ID,
			DefinitionID: rule.DefinitionID,
			Channel:      string(rule.Channel),
			Phone:        rule.Phone,
			Template:     rule.Template,
			DaysBefore:   rule.DaysBefore,
			SendAt:       rule.SendAt,
			Enabled:      rule.Enabled,
			CreatedAt:    now.UTC(),
		}
		_, err := im.store.GetNotificationRule(ctx, rule.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			err = im.store.CreateNotificationRule(ctx, ruleRow)
		case err == nil:
			err = im.store.UpdateNotificationRule(ctx, ruleRow)
		}
		if err != nil {
			return i, err
		}
	}
	return len(in.Notifications), nil
}

func (im *Importer) toModel(in Definition, now time.Time) (model.TaskDefinition, error) {
	weekdays, err := model.ParseWeekdays(strings.Join(in.Weekdays, ","))
	if err != nil {
		return model.TaskDefinition{}, err
	}
	due, err := parseWhen(in.Due, im.loc)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("due: %w", err)
	}
	end, err := parseOptionalDate(in.EndDate, im.loc)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("end_date: %w", err)
	}
	exception, err := parseOptionalDate(in.ExceptionDate, im.loc)
	if err != nil {
		return model.TaskDefinition{}, fmt.Errorf("exception_date: %w", err)
	}
	priority := model.Priority(in.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}
	return model.TaskDefinition{
		ID:          in.ID,
		Description: in.Description,
		Template: model.Template{
			Title:      in.Title,
			Assignee:   in.Assignee,
			Priority:   priority,
			Department: in.Department,
			Branch:     in.Branch,
			Tags:       in.Tags,
		},
		Rule: model.RecurrenceRule{
			Frequency:     model.Frequency(in.Frequency),
			Interval:      in.Interval,
			EndDate:       end,
			Weekdays:      weekdays,
			MonthDays:     in.MonthDays,
			NthWeek:       in.NthWeek,
			ExceptionDate: exception,
		},
		DueAt:         due,
		HolidayListID: in.HolidayList,
		SkipHolidays:  in.SkipHolidays,
		Enabled:       in.Enabled == nil || *in.Enabled,
		CreatedAt:     now.UTC(),
	}, nil
}

var whenLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", time.DateOnly}

// parseWhen accepts RFC 3339 or a zone-less local time read in loc.
func parseWhen(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}

func parseOptionalDate(raw string, loc *time.Location) (mo.Option[time.Time], error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return mo.None[time.Time](), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return mo.None[time.Time](), err
	}
	return mo.Some(t), nil
}
