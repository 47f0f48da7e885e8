// Package update is the bubbletea dashboard over the task reports.
package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/kausik11/taskify/internal/report"
	"github.com/kausik11/taskify/internal/storage"
)

type View string

const (
	ViewSummary  View = "Summary"
	ViewOverdue  View = "Overdue"
	ViewUpcoming View = "Upcoming"
	ViewWorkload View = "Workload"
)

var allViews = []View{ViewSummary, ViewOverdue, ViewUpcoming, ViewWorkload}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Summary  string
	Overdue  string
	Upcoming string
	Workload string
	Refresh  string
	Help     string
	Quit     string
}

// Loader is satisfied by *report.Service.
type Loader interface {
	StatusSummary(ctx context.Context) (report.Summary, error)
	Overdue(ctx context.Context, now time.Time) ([]report.InstanceRow, error)
	Upcoming(ctx context.Context, now time.Time, days int) ([]report.InstanceRow, error)
	Workload(ctx context.Context, now time.Time) ([]storage.WorkloadRow, error)
}

// ReportData is one consistent snapshot of every report.
type ReportData struct {
	Summary  report.Summary
	Overdue  []report.InstanceRow
	Upcoming []report.InstanceRow
	Workload []storage.WorkloadRow
	LoadedAt time.Time
}

type Model struct {
	CurrentView View
	Data        ReportData
	Loading     bool
	HelpVisible bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error

	ctx          context.Context
	loader       Loader
	now          func() time.Time
	upcomingDays int
	refreshEvery time.Duration

	table     table.Model
	helpModel help.Model
	spinner   spinner.Model
}

type Option func(*Model)

func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

func WithUpcomingDays(days int) Option {
	return func(m *Model) {
		if days > 0 {
			m.upcomingDays = days
		}
	}
}

// WithRefreshInterval reloads the reports periodically. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) {
		m.refreshEvery = d
	}
}

// NewModel builds a dashboard reading through loader. ctx carries the actor
// whose permissions the reports are checked against.
func NewModel(ctx context.Context, loader Loader, opts ...Option) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	m := Model{
		CurrentView: ViewSummary,
		Keys: GlobalKeyMap{
			Summary:  "1",
			Overdue:  "2",
			Upcoming: "3",
			Workload: "4",
			Refresh:  "r",
			Help:     "?",
			Quit:     "q",
		},
		ctx:          ctx,
		loader:       loader,
		now:          time.Now,
		upcomingDays: 7,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.initBubbleComponents()
	m.syncTable()
	return m
}

func (m *Model) initBubbleComponents() {
	m.table = table.New(table.WithColumns(columnsFor(m.CurrentView)), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(12))
	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.helpModel = help.New()
}

func isKnownView(v View) bool {
	for _, known := range allViews {
		if v == known {
			return true
		}
	}
	return false
}
