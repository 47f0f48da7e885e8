package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidFrequency = errors.New("model: invalid recurrence frequency")
	ErrInvalidInterval  = errors.New("model: invalid recurrence interval")
	ErrInvalidWeekday   = errors.New("model: invalid weekday")
	ErrInvalidMonthDay  = errors.New("model: invalid month day")
	ErrInvalidNthWeek   = errors.New("model: invalid nth week")
)

// LastWeek selects the last matching weekday of a month.
const LastWeek = -1

type RecurrenceRule struct {
	Frequency Frequency
	// Interval of zero means every period.
	Interval      int
	EndDate       mo.Option[time.Time]
	Weekdays      []time.Weekday
	MonthDays     []int
	NthWeek       int
	ExceptionDate mo.Option[time.Time]
}

func (r RecurrenceRule) IntervalOrDefault() int {
	if r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

// UsesMonthDays reports whether a monthly rule is pinned to explicit days.
// Explicit month days win over an nth-weekday pattern.
func (r RecurrenceRule) UsesMonthDays() bool {
	return r.Frequency == FrequencyMonthly && len(r.MonthDays) > 0
}

// UsesNthWeekday reports whether a monthly rule selects the nth weekday of each month.
func (r RecurrenceRule) UsesNthWeekday() bool {
	return r.Frequency == FrequencyMonthly && !r.UsesMonthDays() && r.NthWeek != 0 && len(r.Weekdays) > 0
}

func (r RecurrenceRule) Validate() error {
	if !r.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, r.Interval)
	}
	seen := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, d := range r.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		if seen[d] {
			return errors.New("model: duplicate weekday in recurrence")
		}
		seen[d] = true
	}
	for _, md := range r.MonthDays {
		if md < 1 || md > 31 {
			return fmt.Errorf("%w: %d", ErrInvalidMonthDay, md)
		}
	}
	if r.NthWeek != LastWeek && (r.NthWeek < 0 || r.NthWeek > 5) {
		return fmt.Errorf("%w: %d", ErrInvalidNthWeek, r.NthWeek)
	}
	if end, ok := r.EndDate.Get(); ok && end.IsZero() {
		return errors.New("model: recurrence end date is zero")
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekdays parses a comma separated weekday list such as "Monday, wed".
// Every entry must be recognised; the result is sorted and de-duplicated.
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, 7)
	seen := make(map[time.Weekday]bool, 7)
	var errs []error
	for _, part := range splitList(raw) {
		d, ok := weekdayNames[strings.ToLower(part)]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidWeekday, part))
			continue
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func FormatWeekdays(days []time.Weekday) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String())
	}
	return strings.Join(names, ",")
}

// ParseMonthDays parses a comma separated list of days of the month ("1, 15, 28").
func ParseMonthDays(raw string) ([]int, error) {
	out := make([]int, 0, 4)
	seen := make(map[int]bool)
	var errs []error
	for _, part := range splitList(raw) {
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 31 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMonthDay, part))
			continue
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Ints(out)
	return out, nil
}

func FormatMonthDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SameDate compares the calendar days of a and b, each read in its own location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
