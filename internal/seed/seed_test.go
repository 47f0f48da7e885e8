package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kausik11/taskify/internal/permissions"
	"github.com/kausik11/taskify/internal/session"
	"github.com/kausik11/taskify/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
holiday_lists:
  - id: hl-head-office
    name: Head Office
    weekly_off: [Sunday]
    holidays:
      - date: 2026-01-26
        description: Republic Day
      - date: 2026-08-15
        description: Independence Day
definitions:
  - id: def-cash
    title: Cash reconciliation
    assignee: priya
    priority: High
    tags: [finance]
    frequency: Weekly
    weekdays: [Monday, wed]
    due: "2026-02-09 09:00"
    end_date: 2026-12-31
    holiday_list: hl-head-office
    skip_holidays: true
    notifications:
      - channel: WhatsApp
        phone: "+919800000001"
        days_before: 1
        send_at: "18:00"
  - id: def-audit
    title: Branch audit
    frequency: Monthly
    month_days: [1]
    due: 2026-03-01T10:00:00+05:30
    enabled: false
`

func setupRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "seed-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func adminCtx() context.Context {
	return session.WithActor(context.Background(), session.System())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("definitions:\n  - id: a\n    titel: typo\n"))
	require.Error(t, err)

	_, err = Parse([]byte("  \n"))
	require.Error(t, err)
}

func TestApplyCreatesRecords(t *testing.T) {
	repo := setupRepo(t)
	loc := time.FixedZone("IST", 5*3600+1800)
	f, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	im := NewImporter(repo, permissions.NewChecker(repo), loc)
	res, err := im.Apply(adminCtx(), f, now)
	require.NoError(t, err)
	assert.Equal(t, Result{HolidayLists: 1, Holidays: 2, Definitions: 2, Notifications: 1}, res)

	list, err := repo.GetHolidayList(context.Background(), "hl-head-office")
	require.NoError(t, err)
	assert.Equal(t, "Sunday", list.WeeklyOff)

	def, err := repo.GetDefinition(context.Background(), "def-cash")
	require.NoError(t, err)
	assert.Equal(t, "Monday,Wednesday", def.Weekdays)
	assert.True(t, def.DueAt.Equal(time.Date(2026, 2, 9, 9, 0, 0, 0, loc)))
	assert.True(t, def.Enabled)
	assert.Nil(t, def.GeneratedUntil)

	audit, err := repo.GetDefinition(context.Background(), "def-audit")
	require.NoError(t, err)
	assert.False(t, audit.Enabled)
	assert.Equal(t, "Medium", audit.Priority)

	rules, err := repo.ListNotificationRules(context.Background(), storage.NotificationRuleListFilter{DefinitionID: "def-cash"})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "def-cash-n1", rules[0].ID)
	assert.Equal(t, "18:00", rules[0].SendAt)
}

func TestApplyTwiceUpdatesInPlace(t *testing.T) {
	repo := setupRepo(t)
	f, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	im := NewImporter(repo, permissions.NewChecker(repo), time.UTC)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	_, err = im.Apply(adminCtx(), f, now)
	require.NoError(t, err)

	f.Definitions[0].Title = "Cash count"
	res, err := im.Apply(adminCtx(), f, now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Holidays, "existing holidays are not inserted again")

	def, err := repo.GetDefinition(context.Background(), "def-cash")
	require.NoError(t, err)
	assert.Equal(t, "Cash count", def.Title)

	holidays, err := repo.ListHolidays(context.Background(), storage.HolidayListFilter{ListID: "hl-head-office"})
	require.NoError(t, err)
	assert.Len(t, holidays, 2)
}

func TestApplyRejectsInvalidDefinition(t *testing.T) {
	repo := setupRepo(t)
	f := File{Definitions: []Definition{{ID: "bad", Title: "Broken", Frequency: "Weekly", Weekdays: []string{"Funday"}, Due: "2026-02-09"}}}
	_, err := NewImporter(repo, permissions.NewChecker(repo), time.UTC).Apply(adminCtx(), f, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	_, err = repo.GetDefinition(context.Background(), "bad")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyRequiresWritePermission(t *testing.T) {
	repo := setupRepo(t)
	f, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	ctx := session.WithActor(context.Background(), session.Actor{User: "asha", Roles: []string{"Viewer"}})

	_, err = NewImporter(repo, permissions.NewChecker(repo), time.UTC).Apply(ctx, f, time.Now())
	assert.ErrorIs(t, err, permissions.ErrForbidden)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o600))
	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Definitions, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
