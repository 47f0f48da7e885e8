// Package recurrence expands recurrence rules into concrete occurrence times.
//
// Expansion is a pure computation: given a rule, the original due date, the
// last generated watermark and the current time it returns the new
// occurrences and the watermark to persist. Persisting instances is left to
// the caller.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/kausik11/taskify/internal/model"
	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// ErrUnknownFrequency is returned alongside an empty Result when the rule's
// frequency has no generator. The watermark in that Result is unchanged.
var ErrUnknownFrequency = errors.New("recurrence: unknown frequency")

// DefaultMaxOccurrences caps a single expansion. A capped run still advances
// the watermark to the last returned occurrence, so the rest is picked up on
// the next run.
const DefaultMaxOccurrences = 1000

// ExceptionLookup reports dates that must never produce an occurrence,
// such as holidays.
type ExceptionLookup interface {
	IsException(t time.Time) bool
}

// ExceptionFunc adapts a function to ExceptionLookup.
type ExceptionFunc func(t time.Time) bool

func (f ExceptionFunc) IsException(t time.Time) bool { return f(t) }

// Result is the outcome of one expansion.
type Result struct {
	Occurrences []time.Time
	Watermark   mo.Option[time.Time]
	// Truncated is set when MaxOccurrences cut the expansion short.
	Truncated bool
}

type Expander struct {
	maxOccurrences int
	exceptions     ExceptionLookup
}

type Option func(*Expander)

// WithMaxOccurrences overrides DefaultMaxOccurrences. Non-positive values are ignored.
func WithMaxOccurrences(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.maxOccurrences = n
		}
	}
}

// WithExceptions drops every occurrence the lookup reports as an exception.
func WithExceptions(lookup ExceptionLookup) Option {
	return func(e *Expander) {
		e.exceptions = lookup
	}
}

func NewExpander(opts ...Option) *Expander {
	e := &Expander{maxOccurrences: DefaultMaxOccurrences}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand is NewExpander().Expand.
func Expand(rule model.RecurrenceRule, originalDue time.Time, watermark mo.Option[time.Time], now time.Time) (Result, error) {
	return NewExpander().Expand(rule, originalDue, watermark, now)
}

// Expand returns the occurrences of rule that have become due since the
// watermark, up to now (or the rule's end date, whichever is earlier).
//
// Without a watermark the window starts at max(originalDue, now), inclusive,
// so a first run never backfills past dates. With a watermark the window
// starts strictly after it.
func (e *Expander) Expand(rule model.RecurrenceRule, originalDue time.Time, watermark mo.Option[time.Time], now time.Time) (Result, error) {
	return e.ExpandUntil(rule, originalDue, watermark, now, now)
}

// ExpandUntil is Expand with the upper bound moved out to until, so
// occurrences that are not due yet can be produced ahead of time. The first
// run lower bound still comes from now. An until before now is treated as now.
//
// All bounds are truncated to whole seconds, the resolution occurrences are
// generated at.
func (e *Expander) ExpandUntil(rule model.RecurrenceRule, originalDue time.Time, watermark mo.Option[time.Time], now, until time.Time) (Result, error) {
	res := Result{Watermark: watermark}

	freq, ok := frequencies[rule.Frequency]
	if !ok {
		return res, fmt.Errorf("%w: %q", ErrUnknownFrequency, rule.Frequency)
	}
	if err := rule.Validate(); err != nil {
		return res, err
	}

	originalDue = originalDue.Truncate(time.Second)
	now = now.Truncate(time.Second)
	end := until.Truncate(time.Second)
	if end.Before(now) {
		end = now
	}
	if endDate, ok := rule.EndDate.Get(); ok && endDate.Before(end) {
		end = endDate.Truncate(time.Second)
	}

	lower, hasWatermark := watermark.Get()
	if hasWatermark {
		lower = lower.Truncate(time.Second)
	} else {
		lower = originalDue
		if now.After(lower) {
			lower = now
		}
	}
	if lower.After(end) {
		return res, nil
	}

	r, err := newRRule(rule, freq, originalDue)
	if err != nil {
		return res, err
	}

	for _, occ := range r.Between(lower, end, true) {
		if hasWatermark && !occ.After(lower) {
			continue
		}
		if exception, ok := rule.ExceptionDate.Get(); ok && model.SameDate(occ, exception) {
			continue
		}
		if e.exceptions != nil && e.exceptions.IsException(occ) {
			continue
		}
		if len(res.Occurrences) == e.maxOccurrences {
			res.Truncated = true
			break
		}
		res.Occurrences = append(res.Occurrences, occ)
	}

	if n := len(res.Occurrences); n > 0 {
		res.Watermark = mo.Some(res.Occurrences[n-1])
	}
	return res, nil
}

// Preview lists the next count occurrences strictly after from, ignoring
// watermarks and the current time. Exceptions are still applied.
func (e *Expander) Preview(rule model.RecurrenceRule, originalDue time.Time, from time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return []time.Time{}, nil
	}
	freq, ok := frequencies[rule.Frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, rule.Frequency)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	r, err := newRRule(rule, freq, originalDue.Truncate(time.Second))
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, count)
	cursor := from.Truncate(time.Second)
	for len(out) < count {
		next := r.After(cursor, false)
		if next.IsZero() {
			break
		}
		cursor = next
		if endDate, ok := rule.EndDate.Get(); ok && next.After(endDate) {
			break
		}
		if exception, ok := rule.ExceptionDate.Get(); ok && model.SameDate(next, exception) {
			continue
		}
		if e.exceptions != nil && e.exceptions.IsException(next) {
			continue
		}
		out = append(out, next)
	}
	return out, nil
}

var frequencies = map[model.Frequency]rrule.Frequency{
	model.FrequencyDaily:   rrule.DAILY,
	model.FrequencyWeekly:  rrule.WEEKLY,
	model.FrequencyMonthly: rrule.MONTHLY,
	model.FrequencyYearly:  rrule.YEARLY,
}

// indexed by time.Weekday
var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func ruleOptions(rule model.RecurrenceRule, freq rrule.Frequency, dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:     freq,
		Interval: rule.IntervalOrDefault(),
		Dtstart:  dtstart,
	}
	switch {
	case rule.Frequency == model.FrequencyWeekly && len(rule.Weekdays) > 0:
		for _, d := range rule.Weekdays {
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	case rule.UsesMonthDays():
		opt.Bymonthday = append(opt.Bymonthday, rule.MonthDays...)
	case rule.UsesNthWeekday():
		for _, d := range rule.Weekdays {
			wd := weekdays[d]
			opt.Byweekday = append(opt.Byweekday, wd.Nth(rule.NthWeek))
		}
	}
	return opt
}

func newRRule(rule model.RecurrenceRule, freq rrule.Frequency, dtstart time.Time) (*rrule.RRule, error) {
	r, err := rrule.NewRRule(ruleOptions(rule, freq, dtstart))
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	return r, nil
}

// RRule renders rule as an RFC 5545 RRULE value (without the "RRULE:"
// prefix or DTSTART), suitable for calendar export.
func RRule(rule model.RecurrenceRule, originalDue time.Time) (string, error) {
	freq, ok := frequencies[rule.Frequency]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, rule.Frequency)
	}
	if err := rule.Validate(); err != nil {
		return "", err
	}
	opt := ruleOptions(rule, freq, originalDue)
	opt.Dtstart = time.Time{}
	if endDate, ok := rule.EndDate.Get(); ok {
		opt.Until = endDateAt(endDate, originalDue).UTC()
	}
	return opt.RRuleString(), nil
}

// endDateAt places a date-only end date at the due clock, so the occurrence
// on the end date itself stays inside UNTIL.
func endDateAt(end, originalDue time.Time) time.Time {
	end = end.In(originalDue.Location())
	y, m, d := end.Date()
	return time.Date(y, m, d, originalDue.Hour(), originalDue.Minute(), originalDue.Second(), 0, originalDue.Location())
}
