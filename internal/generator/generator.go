// Package generator turns enabled task definitions into task instances.
//
// A run is date granular: every occurrence falling on or before today, at the
// definition's own clock time, is due. Each definition is expanded and
// persisted on its own, so one broken definition never blocks the rest.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/permissions"
	"github.com/kausik11/taskify/internal/recurrence"
	"github.com/kausik11/taskify/internal/storage"
	"github.com/samber/mo"
)

type Store interface {
	ListDefinitions(ctx context.Context, filter storage.DefinitionListFilter) ([]storage.TaskDefinition, error)
	GetDefinition(ctx context.Context, id string) (storage.TaskDefinition, error)
	RecordGeneration(ctx context.Context, definitionID string, instances []storage.TaskInstance, watermark time.Time) (int, error)
	ListInstances(ctx context.Context, filter storage.InstanceListFilter) ([]storage.TaskInstance, error)
	UpdateInstanceStatus(ctx context.Context, id string, status string, completedAt *time.Time) error
}

// HolidayLookup resolves a holiday list into exception dates.
type HolidayLookup interface {
	Lookup(ctx context.Context, listID string) (recurrence.ExceptionLookup, error)
}

type Authorizer interface {
	Require(ctx context.Context, doctype string, perm permissions.Permission) error
}

type Summary struct {
	Definitions int
	Generated   int
	Skipped     int
	Failed      int
}

type Generator struct {
	store          Store
	auth           Authorizer
	holidays       HolidayLookup
	logger         *slog.Logger
	loc            *time.Location
	newID          func() string
	maxOccurrences int
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithHolidays enables holiday skipping for definitions that ask for it.
func WithHolidays(h HolidayLookup) Option {
	return func(g *Generator) {
		g.holidays = h
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(g *Generator) {
		if fn != nil {
			g.newID = fn
		}
	}
}

func WithMaxOccurrences(n int) Option {
	return func(g *Generator) {
		g.maxOccurrences = n
	}
}

func New(store Store, auth Authorizer, opts ...Option) *Generator {
	g := &Generator{
		store:          store,
		auth:           auth,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:            time.UTC,
		newID:          uuid.NewString,
		maxOccurrences: recurrence.DefaultMaxOccurrences,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run generates instances for every enabled definition. The actor in ctx
// needs create permission on tasks. Per-definition failures are logged and
// counted; the returned error is reserved for failures of the run itself.
func (g *Generator) Run(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	if err := g.auth.Require(ctx, permissions.DoctypeTask, permissions.Create); err != nil {
		return sum, err
	}
	enabled := true
	rows, err := g.store.ListDefinitions(ctx, storage.DefinitionListFilter{Enabled: &enabled})
	if err != nil {
		return sum, fmt.Errorf("generator: list definitions: %w", err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Definitions++
		n, err := g.runDefinition(ctx, row, now, now)
		switch {
		case errors.Is(err, recurrence.ErrUnknownFrequency), errors.Is(err, model.ErrInvalidFrequency):
			g.logger.Warn("definition skipped", "definition", row.ID, "error", err)
			sum.Skipped++
		case err != nil:
			g.logger.Error("definition generation failed", "definition", row.ID, "error", err)
			sum.Failed++
		case n == 0:
			sum.Skipped++
		default:
			sum.Generated += n
		}
	}
	g.logger.Info("generation run finished",
		"definitions", sum.Definitions, "generated", sum.Generated, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (g *Generator) runDefinition(ctx context.Context, row storage.TaskDefinition, now, until time.Time) (int, error) {
	def, exp, err := g.prepare(ctx, row)
	if err != nil {
		return 0, err
	}

	watermark := mo.None[time.Time]()
	if def.Watermark != nil {
		watermark = mo.Some(*def.Watermark)
	}
	today := atClock(now, def.DueAt)
	res, err := exp.ExpandUntil(def.Rule, def.DueAt, watermark, today, until)
	if err != nil {
		return 0, err
	}
	if len(res.Occurrences) == 0 {
		return 0, nil
	}
	if res.Truncated {
		g.logger.Warn("expansion truncated", "definition", def.ID, "limit", g.maxOccurrences)
	}

	created := now.UTC()
	instances := make([]storage.TaskInstance, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		instances = append(instances, InstanceToRow(def.NewInstance(g.newID(), occ, created)))
	}
	return g.store.RecordGeneration(ctx, def.ID, instances, res.Watermark.MustGet())
}

// prepare converts row and builds the expander for it. The returned
// definition's end date sits at its due clock, so the end date's own
// occurrence is included.
func (g *Generator) prepare(ctx context.Context, row storage.TaskDefinition) (model.TaskDefinition, *recurrence.Expander, error) {
	def, err := DefinitionFromRow(row, g.loc)
	if err != nil {
		return def, nil, err
	}
	if err := def.Validate(); err != nil {
		return def, nil, err
	}

	opts := []recurrence.Option{recurrence.WithMaxOccurrences(g.maxOccurrences)}
	if def.SkipHolidays && g.holidays != nil {
		lookup, err := g.holidays.Lookup(ctx, def.HolidayListID)
		if err != nil {
			return def, nil, err
		}
		opts = append(opts, recurrence.WithExceptions(lookup))
	}
	if end, ok := def.Rule.EndDate.Get(); ok {
		def.Rule.EndDate = mo.Some(atClock(end, def.DueAt))
	}
	return def, recurrence.NewExpander(opts...), nil
}

// GenerateAhead creates the instances of one definition that fall due up to
// until, even if that is past today. Reminders that fire days before the due
// date need their instance to exist by then. The watermark moves with the
// created instances, so a later Run never duplicates them. Disabled
// definitions are left alone.
func (g *Generator) GenerateAhead(ctx context.Context, definitionID string, now, until time.Time) (int, error) {
	if err := g.auth.Require(ctx, permissions.DoctypeTask, permissions.Create); err != nil {
		return 0, err
	}
	row, err := g.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return 0, fmt.Errorf("generator: load definition %s: %w", definitionID, err)
	}
	if !row.Enabled {
		return 0, nil
	}
	n, err := g.runDefinition(ctx, row, now, until)
	if err != nil {
		return 0, fmt.Errorf("generator: generate ahead %s: %w", definitionID, err)
	}
	if n > 0 {
		g.logger.Info("instances generated ahead", "definition", definitionID, "count", n, "until", until)
	}
	return n, nil
}

// Preview lists the next count occurrences of a definition after from. It
// applies the same end date and holiday handling as Run but ignores the
// watermark and writes nothing.
func (g *Generator) Preview(ctx context.Context, definitionID string, from time.Time, count int) ([]time.Time, error) {
	if err := g.auth.Require(ctx, permissions.DoctypeTask, permissions.Read); err != nil {
		return nil, err
	}
	row, err := g.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("generator: load definition %s: %w", definitionID, err)
	}
	def, exp, err := g.prepare(ctx, row)
	if err != nil {
		return nil, err
	}
	return exp.Preview(def.Rule, def.DueAt, from, count)
}

// MarkOverdue moves pending instances due before today to Overdue and
// returns how many were changed.
func (g *Generator) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	if err := g.auth.Require(ctx, permissions.DoctypeTaskInstance, permissions.Write); err != nil {
		return 0, err
	}
	today := model.StartOfDay(now, g.loc)
	rows, err := g.store.ListInstances(ctx, storage.InstanceListFilter{
		Statuses:  []string{string(model.StatusUpcoming), string(model.StatusOpen)},
		DueBefore: &today,
	})
	if err != nil {
		return 0, fmt.Errorf("generator: list pending instances: %w", err)
	}
	changed := 0
	for _, row := range rows {
		if err := g.store.UpdateInstanceStatus(ctx, row.ID, string(model.StatusOverdue), nil); err != nil {
			return changed, fmt.Errorf("generator: mark %s overdue: %w", row.ID, err)
		}
		changed++
	}
	if changed > 0 {
		g.logger.Info("instances marked overdue", "count", changed)
	}
	return changed, nil
}
