// Package holiday maintains holiday lists and exposes them as exception
// lookups for task generation.
package holiday

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/recurrence"
	"github.com/kausik11/taskify/internal/storage"
	"github.com/samber/mo"
)

type Store interface {
	GetHolidayList(ctx context.Context, id string) (storage.HolidayList, error)
	ListHolidayLists(ctx context.Context) ([]storage.HolidayList, error)
	ListHolidays(ctx context.Context, filter storage.HolidayListFilter) ([]storage.Holiday, error)
	ReplaceWeeklyOffs(ctx context.Context, listID string, from, to time.Time, offs []storage.Holiday) error
}

type Service struct {
	store  Store
	loc    *time.Location
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocation sets the timezone that defines "today". Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		loc:    time.UTC,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Regenerate moves the list's window to [today, today+365 days] and rebuilds
// its weekly-off holidays for that window. It returns the number of
// weekly-off days written.
func (s *Service) Regenerate(ctx context.Context, listID string, now time.Time) (int, error) {
	list, err := s.store.GetHolidayList(ctx, listID)
	if err != nil {
		return 0, fmt.Errorf("holiday: load list %s: %w", listID, err)
	}
	offDays, err := model.ParseWeekdays(list.WeeklyOff)
	if err != nil {
		return 0, fmt.Errorf("holiday: list %s: %w", listID, err)
	}

	from := model.StartOfDay(now, s.loc)
	to := from.AddDate(0, 0, model.RollingWindowDays)
	dates, err := weeklyDates(offDays, from, to)
	if err != nil {
		return 0, fmt.Errorf("holiday: list %s: %w", listID, err)
	}

	offs := make([]storage.Holiday, 0, len(dates))
	for _, d := range dates {
		offs = append(offs, storage.Holiday{
			ListID:      listID,
			Date:        dateOnly(d),
			Description: d.Weekday().String(),
			WeeklyOff:   true,
		})
	}
	if err := s.store.ReplaceWeeklyOffs(ctx, listID, dateOnly(from), dateOnly(to), offs); err != nil {
		return 0, fmt.Errorf("holiday: replace weekly offs for %s: %w", listID, err)
	}
	s.logger.Info("holiday list regenerated", "list", listID, "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly), "weekly_offs", len(offs))
	return len(offs), nil
}

// RegenerateAll regenerates every list, continuing past failures.
func (s *Service) RegenerateAll(ctx context.Context, now time.Time) (int, error) {
	lists, err := s.store.ListHolidayLists(ctx)
	if err != nil {
		return 0, fmt.Errorf("holiday: list holiday lists: %w", err)
	}
	total := 0
	var errs []error
	for _, list := range lists {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.Regenerate(ctx, list.ID, now)
		if err != nil {
			s.logger.Error("holiday list regeneration failed", "list", list.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// Lookup loads every holiday of the list into an exception lookup.
func (s *Service) Lookup(ctx context.Context, listID string) (recurrence.ExceptionLookup, error) {
	holidays, err := s.store.ListHolidays(ctx, storage.HolidayListFilter{ListID: listID})
	if err != nil {
		return nil, fmt.Errorf("holiday: load holidays for %s: %w", listID, err)
	}
	set := make(DateSet, len(holidays))
	for _, h := range holidays {
		set.Add(h.Date)
	}
	return set, nil
}

// DateSet is an ExceptionLookup keyed by calendar date.
type DateSet map[string]struct{}

func (d DateSet) Add(t time.Time) {
	d[t.Format(time.DateOnly)] = struct{}{}
}

// IsException reports whether t's calendar date, read in t's own location, is in the set.
func (d DateSet) IsException(t time.Time) bool {
	_, ok := d[t.Format(time.DateOnly)]
	return ok
}

// weeklyDates lists every date in [from, to] that falls on one of days.
func weeklyDates(days []time.Weekday, from, to time.Time) ([]time.Time, error) {
	if len(days) == 0 {
		return nil, nil
	}
	rule := model.RecurrenceRule{Frequency: model.FrequencyWeekly, Weekdays: days}
	exp := recurrence.NewExpander(recurrence.WithMaxOccurrences(7 * (model.RollingWindowDays + 7)))
	res, err := exp.Expand(rule, from, mo.Some(from.Add(-time.Nanosecond)), to)
	if err != nil {
		return nil, err
	}
	return res.Occurrences, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
