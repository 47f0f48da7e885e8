package report

import (
	"fmt"
	"strings"

	"github.com/kausik11/taskify/internal/storage"
)

const dueLayout = "Mon 02 Jan 2006 15:04"

func SummaryMarkdown(s Summary) string {
	var b strings.Builder
	b.WriteString("## Status summary\n\n")
	if len(s.Rows) == 0 {
		b.WriteString("_No task instances yet._\n")
		return b.String()
	}
	b.WriteString("| Status | Count |\n|---|---:|\n")
	for _, r := range s.Rows {
		fmt.Fprintf(&b, "| %s | %d |\n", r.Status, r.Count)
	}
	fmt.Fprintf(&b, "| **Total** | **%d** |\n", s.Total)
	return b.String()
}

func OverdueMarkdown(rows []InstanceRow) string {
	var b strings.Builder
	b.WriteString("## Overdue\n\n")
	if len(rows) == 0 {
		b.WriteString("_Nothing overdue._\n")
		return b.String()
	}
	b.WriteString("| Task | Assignee | Priority | Due | Days late |\n|---|---|---|---|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n", cell(r.Title), cell(r.Assignee), r.Priority, r.DueAt.Format(dueLayout), r.DaysLate)
	}
	return b.String()
}

func UpcomingMarkdown(rows []InstanceRow, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Upcoming (next %d days)\n\n", days)
	if len(rows) == 0 {
		b.WriteString("_Nothing scheduled._\n")
		return b.String()
	}
	b.WriteString("| Task | Assignee | Priority | Status | Due |\n|---|---|---|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", cell(r.Title), cell(r.Assignee), r.Priority, r.Status, r.DueAt.Format(dueLayout))
	}
	return b.String()
}

func WorkloadMarkdown(rows []storage.WorkloadRow) string {
	var b strings.Builder
	b.WriteString("## Workload\n\n")
	if len(rows) == 0 {
		b.WriteString("_No open work._\n")
		return b.String()
	}
	b.WriteString("| Assignee | Open | Overdue | Due today |\n|---|---:|---:|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", cell(r.Assignee), r.Open, r.Overdue, r.DueToday)
	}
	return b.String()
}

func cell(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
