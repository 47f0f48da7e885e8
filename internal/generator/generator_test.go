package generator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kausik11/taskify/internal/holiday"
	"github.com/kausik11/taskify/internal/permissions"
	"github.com/kausik11/taskify/internal/session"
	"github.com/kausik11/taskify/internal/storage"
)

func setupStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "generator-test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func systemCtx() context.Context {
	return session.WithActor(context.Background(), session.System())
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("inst-%03d", n)
	}
}

func weeklyRow(id string, due time.Time) storage.TaskDefinition {
	return storage.TaskDefinition{
		ID:        id,
		Title:     "Cash reconciliation",
		Assignee:  "priya",
		Priority:  "High",
		Tags:      []string{"finance"},
		Frequency: "Weekly",
		Weekdays:  "Monday,Wednesday",
		DueAt:     due,
		Enabled:   true,
		CreatedAt: due.AddDate(0, 0, -7),
	}
}

func mustCreate(t *testing.T, repo *storage.SQLiteRepository, row storage.TaskDefinition) {
	t.Helper()
	if err := repo.CreateDefinition(context.Background(), row); err != nil {
		t.Fatalf("create definition %s: %v", row.ID, err)
	}
}

func instances(t *testing.T, repo *storage.SQLiteRepository, defID string) []storage.TaskInstance {
	t.Helper()
	items, err := repo.ListInstances(context.Background(), storage.InstanceListFilter{DefinitionID: defID})
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	return items
}

func TestRunGeneratesTodayAndAdvancesWatermark(t *testing.T) {
	repo := setupStore(t)
	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC) // Monday
	mustCreate(t, repo, weeklyRow("def-1", due))
	gen := New(repo, permissions.NewChecker(repo), WithIDGenerator(sequentialIDs()))

	// An early-morning run already covers today's 09:00 occurrence.
	sum, err := gen.Run(systemCtx(), time.Date(2026, 2, 9, 1, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if sum.Definitions != 1 || sum.Generated != 1 {
		t.Fatalf("unexpected first summary: %#v", sum)
	}

	sum, err = gen.Run(systemCtx(), time.Date(2026, 2, 12, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Generated != 1 {
		t.Fatalf("expected only Wednesday to be added, got %#v", sum)
	}

	items := instances(t, repo, "def-1")
	if len(items) != 2 {
		t.Fatalf("expected 2 instances, got %#v", items)
	}
	if !items[0].DueAt.Equal(due) || !items[1].DueAt.Equal(due.AddDate(0, 0, 2)) {
		t.Fatalf("unexpected due dates: %s, %s", items[0].DueAt, items[1].DueAt)
	}
	if items[0].Status != "Upcoming" || items[0].Assignee != "priya" || len(items[0].Tags) != 1 {
		t.Fatalf("template not copied: %#v", items[0])
	}

	def, err := repo.GetDefinition(context.Background(), "def-1")
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if def.GeneratedUntil == nil || !def.GeneratedUntil.Equal(due.AddDate(0, 0, 2)) {
		t.Fatalf("unexpected watermark: %v", def.GeneratedUntil)
	}

	// Re-running the same day is a no-op.
	sum, err = gen.Run(systemCtx(), time.Date(2026, 2, 12, 19, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if sum.Generated != 0 || sum.Skipped != 1 {
		t.Fatalf("expected idempotent rerun, got %#v", sum)
	}
}

func TestRunDoesNotBackfillFirstRun(t *testing.T) {
	repo := setupStore(t)
	mustCreate(t, repo, weeklyRow("def-old", time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
	gen := New(repo, permissions.NewChecker(repo))

	// Thursday: no Monday/Wednesday falls on today.
	sum, err := gen.Run(systemCtx(), time.Date(2026, 2, 12, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Generated != 0 {
		t.Fatalf("first run must not backfill, got %#v", sum)
	}
}

func TestRunRequiresPermission(t *testing.T) {
	repo := setupStore(t)
	gen := New(repo, permissions.NewChecker(repo))

	if _, err := gen.Run(context.Background(), time.Now()); !errors.Is(err, permissions.ErrNoActor) {
		t.Fatalf("expected ErrNoActor, got %v", err)
	}
	clerk := session.WithActor(context.Background(), session.Actor{User: "clerk", Roles: []string{"Clerk"}})
	if _, err := gen.Run(clerk, time.Now()); !errors.Is(err, permissions.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if _, err := permissions.Apply(context.Background(), repo, []permissions.Mapping{
		{Role: "Clerk", Doctype: permissions.DoctypeTask, Permissions: []permissions.Permission{permissions.Create}},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := gen.Run(clerk, time.Now()); err != nil {
		t.Fatalf("expected granted run, got %v", err)
	}
}

func TestRunIsolatesBrokenDefinitions(t *testing.T) {
	repo := setupStore(t)
	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	mustCreate(t, repo, weeklyRow("def-good", due))

	bad := weeklyRow("def-bad", due)
	bad.Weekdays = "Funday"
	mustCreate(t, repo, bad)

	unknown := weeklyRow("def-hourly", due)
	unknown.Frequency = "Hourly"
	mustCreate(t, repo, unknown)

	disabled := weeklyRow("def-off", due)
	disabled.Enabled = false
	mustCreate(t, repo, disabled)

	sum, err := New(repo, permissions.NewChecker(repo)).Run(systemCtx(), due)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := Summary{Definitions: 3, Generated: 1, Skipped: 1, Failed: 1}
	if sum != want {
		t.Fatalf("summary = %#v, want %#v", sum, want)
	}
	if got := instances(t, repo, "def-good"); len(got) != 1 {
		t.Fatalf("healthy definition should still generate, got %#v", got)
	}
}

func TestRunSkipsHolidays(t *testing.T) {
	repo := setupStore(t)
	ctx := context.Background()
	if err := repo.CreateHolidayList(ctx, storage.HolidayList{ID: "hl-1", Name: "Head Office", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create holiday list: %v", err)
	}
	if err := repo.CreateHoliday(ctx, storage.Holiday{ListID: "hl-1", Date: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), Description: "Local festival"}); err != nil {
		t.Fatalf("create holiday: %v", err)
	}

	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	row := weeklyRow("def-hol", due)
	row.HolidayListID = "hl-1"
	row.SkipHolidays = true
	mustCreate(t, repo, row)

	gen := New(repo, permissions.NewChecker(repo), WithHolidays(holiday.NewService(repo)))
	for _, day := range []int{9, 12, 16} {
		if _, err := gen.Run(systemCtx(), time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC)); err != nil {
			t.Fatalf("run on %d: %v", day, err)
		}
	}

	items := instances(t, repo, "def-hol")
	if len(items) != 2 {
		t.Fatalf("expected Feb 9 and Feb 16 only, got %#v", items)
	}
	if items[1].DueAt.Day() != 16 {
		t.Fatalf("holiday leaked into instances: %s", items[1].DueAt)
	}
}

func TestRunEndDateIncludesItsDay(t *testing.T) {
	repo := setupStore(t)
	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	row := weeklyRow("def-daily", due)
	row.Frequency = "Daily"
	row.Weekdays = ""
	row.EndDate = &end
	mustCreate(t, repo, row)

	gen := New(repo, permissions.NewChecker(repo))
	for _, day := range []int{9, 14} {
		if _, err := gen.Run(systemCtx(), time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC)); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	items := instances(t, repo, "def-daily")
	if len(items) != 2 || items[1].DueAt.Day() != 10 {
		t.Fatalf("expected Feb 9 and Feb 10, got %#v", items)
	}
}

func TestRunUsesConfiguredTimezone(t *testing.T) {
	repo := setupStore(t)
	ist := time.FixedZone("IST", 5*3600+1800)
	// Monday 01:30 in IST is still Sunday in UTC.
	due := time.Date(2026, 2, 9, 1, 30, 0, 0, ist)
	row := weeklyRow("def-ist", due.UTC())
	row.Weekdays = "Monday"
	mustCreate(t, repo, row)

	gen := New(repo, permissions.NewChecker(repo), WithLocation(ist))
	sum, err := gen.Run(systemCtx(), time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Generated != 1 {
		t.Fatalf("expected the IST Monday occurrence, got %#v", sum)
	}
	items := instances(t, repo, "def-ist")
	if !items[0].DueAt.Equal(due) {
		t.Fatalf("due = %s, want %s", items[0].DueAt, due)
	}
}

func TestMarkOverdue(t *testing.T) {
	repo := setupStore(t)
	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	mustCreate(t, repo, weeklyRow("def-1", due))
	gen := New(repo, permissions.NewChecker(repo))
	if _, err := gen.Run(systemCtx(), due); err != nil {
		t.Fatalf("run: %v", err)
	}

	n, err := gen.MarkOverdue(systemCtx(), due)
	if err != nil {
		t.Fatalf("mark overdue today: %v", err)
	}
	if n != 0 {
		t.Fatalf("an instance due today is not overdue yet, changed %d", n)
	}

	n, err = gen.MarkOverdue(systemCtx(), due.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one overdue instance, got %d", n)
	}
	if items := instances(t, repo, "def-1"); items[0].Status != "Overdue" {
		t.Fatalf("unexpected status: %s", items[0].Status)
	}
}

func dailyRow(id string, due time.Time) storage.TaskDefinition {
	row := weeklyRow(id, due)
	row.Frequency = "Daily"
	row.Weekdays = ""
	return row
}

func TestGenerateAheadCreatesFutureInstancesOnce(t *testing.T) {
	repo := setupStore(t)
	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	mustCreate(t, repo, dailyRow("def-daily", due))

	gen := New(repo, permissions.NewChecker(repo), WithIDGenerator(sequentialIDs()))
	now := time.Date(2026, 2, 9, 1, 0, 0, 0, time.UTC)
	n, err := gen.GenerateAhead(systemCtx(), "def-daily", now, now.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("generate ahead: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected Feb 9, 10 and 11 ahead of time, got %d", n)
	}

	sum, err := gen.Run(systemCtx(), time.Date(2026, 2, 10, 1, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Generated != 0 {
		t.Fatalf("run repeated instances created ahead: %+v", sum)
	}
	if _, err := gen.Run(systemCtx(), time.Date(2026, 2, 12, 1, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("run: %v", err)
	}

	items := instances(t, repo, "def-daily")
	if len(items) != 4 {
		t.Fatalf("expected 4 instances, got %d", len(items))
	}
	for i, item := range items {
		if item.DueAt.Day() != 9+i {
			t.Fatalf("instance %d due %s", i, item.DueAt)
		}
	}
}

func TestGenerateAheadIgnoresDisabledDefinitions(t *testing.T) {
	repo := setupStore(t)
	row := dailyRow("def-off", time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC))
	row.Enabled = false
	mustCreate(t, repo, row)

	gen := New(repo, permissions.NewChecker(repo))
	now := time.Date(2026, 2, 9, 1, 0, 0, 0, time.UTC)
	n, err := gen.GenerateAhead(systemCtx(), "def-off", now, now.Add(72*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("expected nothing for a disabled definition, got n=%d err=%v", n, err)
	}
	if _, err := gen.GenerateAhead(systemCtx(), "def-missing", now, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPreviewAppliesEndDate(t *testing.T) {
	repo := setupStore(t)
	due := time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	row := dailyRow("def-daily", due)
	row.EndDate = &end
	mustCreate(t, repo, row)

	gen := New(repo, permissions.NewChecker(repo))
	got, err := gen.Preview(systemCtx(), "def-daily", due, 5)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(got) != 2 || got[0].Day() != 10 || got[1].Day() != 11 || got[1].Hour() != 9 {
		t.Fatalf("expected Feb 10 and Feb 11 at 09:00, got %v", got)
	}
	if items := instances(t, repo, "def-daily"); len(items) != 0 {
		t.Fatalf("preview must not write instances, got %d", len(items))
	}
}
