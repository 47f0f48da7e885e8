package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "taskify-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func seedDefinition(t *testing.T, repo *SQLiteRepository, id string) TaskDefinition {
	t.Helper()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")
	def := TaskDefinition{
		ID:            id,
		Title:         "Cash reconciliation",
		Assignee:      "priya",
		Priority:      "High",
		Department:    "Finance",
		Tags:          []string{"finance", "daily"},
		Frequency:     "Weekly",
		IntervalValue: 1,
		Weekdays:      "Monday,Wednesday",
		DueAt:         parseRFC3339(t, "2026-02-09T09:00:00Z"),
		Enabled:       true,
		CreatedAt:     created,
	}
	if err := repo.CreateDefinition(context.Background(), def); err != nil {
		t.Fatalf("create definition: %v", err)
	}
	return def
}

func instanceFor(def TaskDefinition, id string, due time.Time) TaskInstance {
	return TaskInstance{
		ID:           id,
		DefinitionID: def.ID,
		Title:        def.Title,
		Assignee:     def.Assignee,
		Priority:     def.Priority,
		Tags:         def.Tags,
		Status:       "Upcoming",
		DueAt:        due,
		CreatedAt:    def.CreatedAt,
	}
}

func TestDefinitionCRUDAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	def := seedDefinition(t, repo, "def-1")

	got, err := repo.GetDefinition(ctx, def.ID)
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if got.Title != def.Title || got.Weekdays != "Monday,Wednesday" || len(got.Tags) != 2 {
		t.Fatalf("unexpected definition: %#v", got)
	}
	if got.GeneratedUntil != nil || got.EndDate != nil {
		t.Fatalf("expected nil optional dates, got %#v", got)
	}
	if !got.DueAt.Equal(def.DueAt) {
		t.Fatalf("due mismatch: %s != %s", got.DueAt, def.DueAt)
	}

	end := parseRFC3339(t, "2026-12-31T00:00:00Z")
	def.Title = "Cash reconciliation v2"
	def.EndDate = &end
	def.Enabled = false
	if err := repo.UpdateDefinition(ctx, def); err != nil {
		t.Fatalf("update definition: %v", err)
	}

	disabled := false
	list, err := repo.ListDefinitions(ctx, DefinitionListFilter{Enabled: &disabled})
	if err != nil {
		t.Fatalf("list definitions: %v", err)
	}
	if len(list) != 1 || list[0].EndDate == nil || !list[0].EndDate.Equal(end) {
		t.Fatalf("unexpected definition list: %#v", list)
	}

	if err := repo.DeleteDefinition(ctx, def.ID); err != nil {
		t.Fatalf("delete definition: %v", err)
	}
	if _, err := repo.GetDefinition(ctx, def.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if err := repo.UpdateDefinition(ctx, def); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got: %v", err)
	}
}

func TestRecordGenerationAdvancesWatermark(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	def := seedDefinition(t, repo, "def-gen")

	first := parseRFC3339(t, "2026-02-09T09:00:00Z")
	second := parseRFC3339(t, "2026-02-11T09:00:00Z")
	n, err := repo.RecordGeneration(ctx, def.ID, []TaskInstance{
		instanceFor(def, "inst-1", first),
		instanceFor(def, "inst-2", second),
	}, second)
	if err != nil {
		t.Fatalf("record generation: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	got, err := repo.GetDefinition(ctx, def.ID)
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if got.GeneratedUntil == nil || !got.GeneratedUntil.Equal(second) {
		t.Fatalf("unexpected watermark: %v", got.GeneratedUntil)
	}

	// Same due date under a new id is skipped, not duplicated.
	n, err = repo.RecordGeneration(ctx, def.ID, []TaskInstance{instanceFor(def, "inst-dup", second)}, second)
	if err != nil {
		t.Fatalf("record duplicate generation: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected duplicate to be ignored, inserted %d", n)
	}

	items, err := repo.ListInstances(ctx, InstanceListFilter{DefinitionID: def.ID})
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(items) != 2 || items[0].ID != "inst-1" || items[1].ID != "inst-2" {
		t.Fatalf("unexpected instances: %#v", items)
	}
}

func TestRecordGenerationRejectsStaleWatermark(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	def := seedDefinition(t, repo, "def-stale")

	later := parseRFC3339(t, "2026-03-02T09:00:00Z")
	if _, err := repo.RecordGeneration(ctx, def.ID, nil, later); err != nil {
		t.Fatalf("record generation: %v", err)
	}

	earlier := parseRFC3339(t, "2026-02-16T09:00:00Z")
	_, err := repo.RecordGeneration(ctx, def.ID, []TaskInstance{instanceFor(def, "inst-old", earlier)}, earlier)
	if !errors.Is(err, ErrStaleWatermark) {
		t.Fatalf("expected ErrStaleWatermark, got %v", err)
	}

	items, err := repo.ListInstances(ctx, InstanceListFilter{DefinitionID: def.ID})
	if err != nil {
		t.Fatalf("list instances: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rolled back transaction must not insert, got %#v", items)
	}
}

func TestRecordGenerationUnknownDefinition(t *testing.T) {
	repo := setupRepo(t)
	_, err := repo.RecordGeneration(context.Background(), "missing", nil, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInstanceFiltersAndStatus(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	def := seedDefinition(t, repo, "def-filter")

	dues := []time.Time{
		parseRFC3339(t, "2026-02-09T09:00:00Z"),
		parseRFC3339(t, "2026-02-11T09:00:00Z"),
		parseRFC3339(t, "2026-02-16T09:00:00Z"),
	}
	batch := make([]TaskInstance, 0, len(dues))
	for i, due := range dues {
		batch = append(batch, instanceFor(def, []string{"a", "b", "c"}[i], due))
	}
	if _, err := repo.RecordGeneration(ctx, def.ID, batch, dues[2]); err != nil {
		t.Fatalf("record generation: %v", err)
	}

	completed := parseRFC3339(t, "2026-02-09T10:00:00Z")
	if err := repo.UpdateInstanceStatus(ctx, "a", "Completed", &completed); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := repo.GetInstance(ctx, "a")
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if got.Status != "Completed" || got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("unexpected instance: %#v", got)
	}

	from := dues[1]
	before := dues[2]
	window, err := repo.ListInstances(ctx, InstanceListFilter{DueFrom: &from, DueBefore: &before})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(window) != 1 || window[0].ID != "b" {
		t.Fatalf("unexpected window: %#v", window)
	}

	pending, err := repo.ListInstances(ctx, InstanceListFilter{Statuses: []string{"Upcoming", "Open"}, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "c" {
		t.Fatalf("unexpected pending page: %#v", pending)
	}

	if err := repo.UpdateInstanceStatus(ctx, "missing", "Open", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHolidayListsAndWeeklyOffs(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-01-01T00:00:00Z")

	list := HolidayList{ID: "hl-1", Name: "India 2026", WeeklyOff: "Sunday", CreatedAt: created}
	if err := repo.CreateHolidayList(ctx, list); err != nil {
		t.Fatalf("create holiday list: %v", err)
	}
	republic := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	if err := repo.CreateHoliday(ctx, Holiday{ListID: list.ID, Date: republic, Description: "Republic Day"}); err != nil {
		t.Fatalf("create holiday: %v", err)
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 365)
	offs := []Holiday{
		{Date: time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), Description: "Sunday"},
		{Date: time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), Description: "Sunday"},
	}
	if err := repo.ReplaceWeeklyOffs(ctx, list.ID, from, to, offs); err != nil {
		t.Fatalf("replace weekly offs: %v", err)
	}
	// Second regeneration replaces rather than accumulates.
	if err := repo.ReplaceWeeklyOffs(ctx, list.ID, from, to, offs[:1]); err != nil {
		t.Fatalf("replace weekly offs again: %v", err)
	}

	holidays, err := repo.ListHolidays(ctx, HolidayListFilter{ListID: list.ID})
	if err != nil {
		t.Fatalf("list holidays: %v", err)
	}
	if len(holidays) != 2 {
		t.Fatalf("expected manual holiday plus one weekly off, got %#v", holidays)
	}
	if !holidays[0].WeeklyOff || holidays[1].Description != "Republic Day" || holidays[1].WeeklyOff {
		t.Fatalf("unexpected holidays: %#v", holidays)
	}

	got, err := repo.GetHolidayList(ctx, list.ID)
	if err != nil {
		t.Fatalf("get holiday list: %v", err)
	}
	if got.FromDate == nil || got.ToDate == nil || !got.ToDate.Equal(to) {
		t.Fatalf("unexpected window: %#v", got)
	}

	if err := repo.ReplaceWeeklyOffs(ctx, "missing", from, to, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationRulesAndLogs(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	def := seedDefinition(t, repo, "def-notify")
	due := parseRFC3339(t, "2026-02-11T09:00:00Z")
	if _, err := repo.RecordGeneration(ctx, def.ID, []TaskInstance{instanceFor(def, "inst-n", due)}, due); err != nil {
		t.Fatalf("record generation: %v", err)
	}

	rule := NotificationRule{
		ID:           "rule-1",
		DefinitionID: def.ID,
		Channel:      "WhatsApp",
		Phone:        "+919800000000",
		Template:     "{{.Title}} is due",
		DaysBefore:   1,
		SendAt:       "09:00",
		Enabled:      true,
		CreatedAt:    def.CreatedAt,
	}
	if err := repo.CreateNotificationRule(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	rule.DaysBefore = 2
	if err := repo.UpdateNotificationRule(ctx, rule); err != nil {
		t.Fatalf("update rule: %v", err)
	}
	enabled := true
	rules, err := repo.ListNotificationRules(ctx, NotificationRuleListFilter{DefinitionID: def.ID, Enabled: &enabled})
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 1 || rules[0].DaysBefore != 2 {
		t.Fatalf("unexpected rules: %#v", rules)
	}

	has, err := repo.HasNotificationLog(ctx, "inst-n", rule.ID)
	if err != nil || has {
		t.Fatalf("expected no log yet, has=%v err=%v", has, err)
	}
	if err := repo.CreateNotificationLog(ctx, NotificationLog{
		ID: "log-1", InstanceID: "inst-n", RuleID: rule.ID, Status: "Sent", SentAt: due,
	}); err != nil {
		t.Fatalf("create log: %v", err)
	}
	if err := repo.CreateNotificationLog(ctx, NotificationLog{
		ID: "log-2", InstanceID: "inst-n", RuleID: rule.ID, Status: "Sent", SentAt: due,
	}); err == nil {
		t.Fatal("expected unique violation for second log of the same rule and instance")
	}
	has, err = repo.HasNotificationLog(ctx, "inst-n", rule.ID)
	if err != nil || !has {
		t.Fatalf("expected log, has=%v err=%v", has, err)
	}
	logs, err := repo.ListNotificationLogs(ctx, NotificationLogListFilter{Status: "Sent"})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != "log-1" {
		t.Fatalf("unexpected logs: %#v", logs)
	}

	if err := repo.DeleteNotificationRule(ctx, rule.ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	if _, err := repo.GetNotificationRule(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRolePermissionUpsert(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.UpsertRolePermission(ctx, RolePermission{Role: "Branch Manager", Doctype: "Task", Read: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpsertRolePermission(ctx, RolePermission{Role: "Branch Manager", Doctype: "Task", Read: true, Write: true}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if err := repo.UpsertRolePermission(ctx, RolePermission{Role: "Auditor", Doctype: "Task", Report: true}); err != nil {
		t.Fatalf("upsert auditor: %v", err)
	}

	perms, err := repo.ListRolePermissions(ctx, RolePermissionListFilter{Roles: []string{"Branch Manager"}, Doctype: "Task"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(perms) != 1 || !perms[0].Write || perms[0].Delete {
		t.Fatalf("unexpected permissions: %#v", perms)
	}

	if err := repo.DeleteRolePermission(ctx, "Auditor", "Task"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteRolePermission(ctx, "Auditor", "Task"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusCountsAndWorkload(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	def := seedDefinition(t, repo, "def-report")

	today := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	batch := []TaskInstance{
		instanceFor(def, "late", today.AddDate(0, 0, -2).Add(9*time.Hour)),
		instanceFor(def, "now", today.Add(9*time.Hour)),
		instanceFor(def, "soon", today.AddDate(0, 0, 3).Add(9*time.Hour)),
	}
	if _, err := repo.RecordGeneration(ctx, def.ID, batch, batch[2].DueAt); err != nil {
		t.Fatalf("record generation: %v", err)
	}
	done := today
	if err := repo.UpdateInstanceStatus(ctx, "soon", "Completed", &done); err != nil {
		t.Fatalf("complete: %v", err)
	}

	counts, err := repo.StatusCounts(ctx)
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if len(counts) != 2 || counts[0].Status != "Completed" || counts[0].Count != 1 || counts[1].Count != 2 {
		t.Fatalf("unexpected counts: %#v", counts)
	}

	rows, err := repo.Workload(ctx, today)
	if err != nil {
		t.Fatalf("workload: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("unexpected workload rows: %#v", rows)
	}
	if rows[0].Assignee != "priya" || rows[0].Open != 2 || rows[0].Overdue != 1 || rows[0].DueToday != 1 {
		t.Fatalf("unexpected workload: %#v", rows[0])
	}
}
