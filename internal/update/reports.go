package update

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kausik11/taskify/internal/report"
)

const dueLayout = "02 Jan 15:04"

type ReportsLoadedMsg struct {
	Data ReportData
	Err  error
}

type RefreshTickMsg struct {
	At time.Time
}

type SwitchViewMsg struct {
	View View
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

// loadCmd fetches every report in one go so views never mix snapshots.
func (m Model) loadCmd() tea.Cmd {
	if m.loader == nil {
		return nil
	}
	ctx, loader, now, days := m.ctx, m.loader, m.now(), m.upcomingDays
	return func() tea.Msg {
		var (
			data = ReportData{LoadedAt: now}
			errs []error
			err  error
		)
		if data.Summary, err = loader.StatusSummary(ctx); err != nil {
			errs = append(errs, fmt.Errorf("summary: %w", err))
		}
		if data.Overdue, err = loader.Overdue(ctx, now); err != nil {
			errs = append(errs, fmt.Errorf("overdue: %w", err))
		}
		if data.Upcoming, err = loader.Upcoming(ctx, now, days); err != nil {
			errs = append(errs, fmt.Errorf("upcoming: %w", err))
		}
		if data.Workload, err = loader.Workload(ctx, now); err != nil {
			errs = append(errs, fmt.Errorf("workload: %w", err))
		}
		return ReportsLoadedMsg{Data: data, Err: errors.Join(errs...)}
	}
}

func (m Model) tickCmd() tea.Cmd {
	if m.refreshEvery <= 0 {
		return nil
	}
	return tea.Tick(m.refreshEvery, func(t time.Time) tea.Msg { return RefreshTickMsg{At: t} })
}

func columnsFor(v View) []table.Column {
	switch v {
	case ViewOverdue:
		return []table.Column{
			{Title: "Task", Width: 24},
			{Title: "Assignee", Width: 12},
			{Title: "Due", Width: 12},
			{Title: "Late", Width: 5},
		}
	case ViewUpcoming:
		return []table.Column{
			{Title: "Task", Width: 24},
			{Title: "Assignee", Width: 12},
			{Title: "Priority", Width: 8},
			{Title: "Due", Width: 12},
		}
	case ViewWorkload:
		return []table.Column{
			{Title: "Assignee", Width: 20},
			{Title: "Open", Width: 6},
			{Title: "Overdue", Width: 8},
			{Title: "Today", Width: 6},
		}
	default:
		return []table.Column{
			{Title: "Status", Width: 16},
			{Title: "Count", Width: 8},
		}
	}
}

func (m Model) rowsFor(v View) []table.Row {
	switch v {
	case ViewOverdue:
		rows := make([]table.Row, 0, len(m.Data.Overdue))
		for _, r := range m.Data.Overdue {
			rows = append(rows, table.Row{r.Title, r.Assignee, r.DueAt.Format(dueLayout), strconv.Itoa(r.DaysLate)})
		}
		return rows
	case ViewUpcoming:
		rows := make([]table.Row, 0, len(m.Data.Upcoming))
		for _, r := range m.Data.Upcoming {
			rows = append(rows, table.Row{r.Title, r.Assignee, r.Priority, r.DueAt.Format(dueLayout)})
		}
		return rows
	case ViewWorkload:
		rows := make([]table.Row, 0, len(m.Data.Workload))
		for _, r := range m.Data.Workload {
			rows = append(rows, table.Row{r.Assignee, strconv.Itoa(r.Open), strconv.Itoa(r.Overdue), strconv.Itoa(r.DueToday)})
		}
		return rows
	default:
		rows := make([]table.Row, 0, len(m.Data.Summary.Rows))
		for _, r := range m.Data.Summary.Rows {
			rows = append(rows, table.Row{r.Status, strconv.Itoa(r.Count)})
		}
		return rows
	}
}

// syncTable rebuilds the table for the current view. Rows are cleared before
// the columns change so no row is ever rendered against a narrower header.
func (m *Model) syncTable() {
	cursor := m.table.Cursor()
	rows := m.rowsFor(m.CurrentView)
	m.table.SetRows([]table.Row{})
	m.table.SetColumns(columnsFor(m.CurrentView))
	m.table.SetRows(rows)
	if len(rows) == 0 {
		return
	}
	m.table.SetCursor(min(max(cursor, 0), len(rows)-1))
}

// detailMarkdown describes the selected row, or the whole report for views
// without a per-row detail.
func (m Model) detailMarkdown() string {
	switch m.CurrentView {
	case ViewOverdue:
		if r, ok := selected(m.Data.Overdue, m.table.Cursor()); ok {
			return instanceMarkdown(r)
		}
		return report.OverdueMarkdown(nil)
	case ViewUpcoming:
		if r, ok := selected(m.Data.Upcoming, m.table.Cursor()); ok {
			return instanceMarkdown(r)
		}
		return report.UpcomingMarkdown(nil, m.upcomingDays)
	case ViewWorkload:
		return report.WorkloadMarkdown(m.Data.Workload)
	default:
		return report.SummaryMarkdown(m.Data.Summary)
	}
}

func selected(rows []report.InstanceRow, cursor int) (report.InstanceRow, bool) {
	if cursor < 0 || cursor >= len(rows) {
		return report.InstanceRow{}, false
	}
	return rows[cursor], true
}

func instanceMarkdown(r report.InstanceRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.Title)
	fmt.Fprintf(&b, "- **Instance:** `%s`\n", r.ID)
	fmt.Fprintf(&b, "- **Assignee:** %s\n", fallback(r.Assignee))
	fmt.Fprintf(&b, "- **Priority:** %s\n", r.Priority)
	fmt.Fprintf(&b, "- **Status:** %s\n", r.Status)
	fmt.Fprintf(&b, "- **Due:** %s\n", r.DueAt.Format("Mon 02 Jan 2006 15:04"))
	if r.DaysLate > 0 {
		fmt.Fprintf(&b, "- **Days late:** %d\n", r.DaysLate)
	}
	return b.String()
}

func fallback(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unassigned"
	}
	return s
}
