// Package report builds the status, overdue, upcoming and workload views
// over generated task instances.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/permissions"
	"github.com/kausik11/taskify/internal/storage"
)

type Querier interface {
	StatusCounts(ctx context.Context) ([]storage.StatusCount, error)
	Workload(ctx context.Context, today time.Time) ([]storage.WorkloadRow, error)
	ListInstances(ctx context.Context, filter storage.InstanceListFilter) ([]storage.TaskInstance, error)
}

type Authorizer interface {
	Require(ctx context.Context, doctype string, perm permissions.Permission) error
}

type Summary struct {
	Rows  []storage.StatusCount
	Total int
}

type InstanceRow struct {
	ID       string
	Title    string
	Assignee string
	Priority string
	Status   string
	DueAt    time.Time
	// DaysLate is positive for overdue rows and zero otherwise.
	DaysLate int
}

type Service struct {
	store Querier
	auth  Authorizer
	loc   *time.Location
}

func NewService(store Querier, auth Authorizer, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, auth: auth, loc: loc}
}

var statusOrder = map[string]int{
	string(model.StatusOverdue):   0,
	string(model.StatusOpen):      1,
	string(model.StatusUpcoming):  2,
	string(model.StatusCompleted): 3,
	string(model.StatusCancelled): 4,
}

// StatusSummary counts instances per status, most urgent status first.
func (s *Service) StatusSummary(ctx context.Context) (Summary, error) {
	if err := s.require(ctx); err != nil {
		return Summary{}, err
	}
	rows, err := s.store.StatusCounts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("report: status counts: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rank(rows[i].Status) < rank(rows[j].Status)
	})
	out := Summary{Rows: rows}
	for _, r := range rows {
		out.Total += r.Count
	}
	return out, nil
}

func rank(status string) int {
	if r, ok := statusOrder[status]; ok {
		return r
	}
	return len(statusOrder)
}

// Overdue lists pending instances due before today.
func (s *Service) Overdue(ctx context.Context, now time.Time) ([]InstanceRow, error) {
	if err := s.require(ctx); err != nil {
		return nil, err
	}
	today := model.StartOfDay(now, s.loc)
	items, err := s.store.ListInstances(ctx, storage.InstanceListFilter{
		Statuses:  pendingStatuses(),
		DueBefore: &today,
	})
	if err != nil {
		return nil, fmt.Errorf("report: overdue: %w", err)
	}
	out := make([]InstanceRow, 0, len(items))
	for _, it := range items {
		row := s.toRow(it)
		row.DaysLate = daysBetween(model.StartOfDay(it.DueAt, s.loc), today)
		out = append(out, row)
	}
	return out, nil
}

// Upcoming lists pending instances due from today through the next days days.
func (s *Service) Upcoming(ctx context.Context, now time.Time, days int) ([]InstanceRow, error) {
	if err := s.require(ctx); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	from := model.StartOfDay(now, s.loc)
	until := from.AddDate(0, 0, days+1)
	items, err := s.store.ListInstances(ctx, storage.InstanceListFilter{
		Statuses:  []string{string(model.StatusUpcoming), string(model.StatusOpen)},
		DueFrom:   &from,
		DueBefore: &until,
	})
	if err != nil {
		return nil, fmt.Errorf("report: upcoming: %w", err)
	}
	out := make([]InstanceRow, 0, len(items))
	for _, it := range items {
		out = append(out, s.toRow(it))
	}
	return out, nil
}

func (s *Service) Workload(ctx context.Context, now time.Time) ([]storage.WorkloadRow, error) {
	if err := s.require(ctx); err != nil {
		return nil, err
	}
	rows, err := s.store.Workload(ctx, model.StartOfDay(now, s.loc))
	if err != nil {
		return nil, fmt.Errorf("report: workload: %w", err)
	}
	return rows, nil
}

func (s *Service) require(ctx context.Context) error {
	if s.auth == nil {
		return nil
	}
	return s.auth.Require(ctx, permissions.DoctypeTaskInstance, permissions.Report)
}

func (s *Service) toRow(it storage.TaskInstance) InstanceRow {
	return InstanceRow{
		ID:       it.ID,
		Title:    it.Title,
		Assignee: it.Assignee,
		Priority: it.Priority,
		Status:   it.Status,
		DueAt:    it.DueAt.In(s.loc),
	}
}

func pendingStatuses() []string {
	return []string{string(model.StatusUpcoming), string(model.StatusOpen), string(model.StatusOverdue)}
}

func daysBetween(from, to time.Time) int {
	// Round to whole days so DST shifts do not lose a day.
	return int((to.Sub(from) + 12*time.Hour) / (24 * time.Hour))
}
