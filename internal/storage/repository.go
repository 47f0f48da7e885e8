package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrStaleWatermark is returned when a generation run would move a
	// definition's watermark backwards.
	ErrStaleWatermark = errors.New("storage: watermark would move backwards")
)

type Repository interface {
	CreateDefinition(ctx context.Context, in TaskDefinition) error
	GetDefinition(ctx context.Context, id string) (TaskDefinition, error)
	UpdateDefinition(ctx context.Context, in TaskDefinition) error
	DeleteDefinition(ctx context.Context, id string) error
	ListDefinitions(ctx context.Context, filter DefinitionListFilter) ([]TaskDefinition, error)

	// RecordGeneration inserts the instances and advances the definition's
	// watermark in one transaction. Instances that already exist for the same
	// definition and due date are skipped; the number inserted is returned.
	RecordGeneration(ctx context.Context, definitionID string, instances []TaskInstance, watermark time.Time) (int, error)
	GetInstance(ctx context.Context, id string) (TaskInstance, error)
	ListInstances(ctx context.Context, filter InstanceListFilter) ([]TaskInstance, error)
	UpdateInstanceStatus(ctx context.Context, id string, status string, completedAt *time.Time) error

	CreateHolidayList(ctx context.Context, in HolidayList) error
	GetHolidayList(ctx context.Context, id string) (HolidayList, error)
	UpdateHolidayList(ctx context.Context, in HolidayList) error
	ListHolidayLists(ctx context.Context) ([]HolidayList, error)
	CreateHoliday(ctx context.Context, in Holiday) error
	ListHolidays(ctx context.Context, filter HolidayListFilter) ([]Holiday, error)
	// ReplaceWeeklyOffs swaps the generated weekly-off holidays of a list for
	// offs and moves the list window to [from, to] in one transaction.
	// Manually entered holidays are kept.
	ReplaceWeeklyOffs(ctx context.Context, listID string, from, to time.Time, offs []Holiday) error

	CreateNotificationRule(ctx context.Context, in NotificationRule) error
	GetNotificationRule(ctx context.Context, id string) (NotificationRule, error)
	UpdateNotificationRule(ctx context.Context, in NotificationRule) error
	DeleteNotificationRule(ctx context.Context, id string) error
	ListNotificationRules(ctx context.Context, filter NotificationRuleListFilter) ([]NotificationRule, error)
	CreateNotificationLog(ctx context.Context, in NotificationLog) error
	HasNotificationLog(ctx context.Context, instanceID, ruleID string) (bool, error)
	ListNotificationLogs(ctx context.Context, filter NotificationLogListFilter) ([]NotificationLog, error)

	UpsertRolePermission(ctx context.Context, in RolePermission) error
	DeleteRolePermission(ctx context.Context, role, doctype string) error
	ListRolePermissions(ctx context.Context, filter RolePermissionListFilter) ([]RolePermission, error)

	StatusCounts(ctx context.Context) ([]StatusCount, error)
	Workload(ctx context.Context, today time.Time) ([]WorkloadRow, error)
}
