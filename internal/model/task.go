package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus   = errors.New("model: invalid instance status")
	ErrInvalidPriority = errors.New("model: invalid task priority")
)

type InstanceStatus string

const (
	StatusUpcoming  InstanceStatus = "Upcoming"
	StatusOpen      InstanceStatus = "Open"
	StatusCompleted InstanceStatus = "Completed"
	StatusOverdue   InstanceStatus = "Overdue"
	StatusCancelled InstanceStatus = "Cancelled"
)

func (s InstanceStatus) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusOpen, StatusCompleted, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsPending reports whether an instance still expects work.
func (s InstanceStatus) IsPending() bool {
	return s == StatusUpcoming || s == StatusOpen || s == StatusOverdue
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Template holds the fields a definition copies onto every generated instance.
type Template struct {
	Title      string
	Assignee   string
	Priority   Priority
	Department string
	Branch     string
	Tags       []string
}

type TaskDefinition struct {
	ID            string
	Description   string
	Template      Template
	Rule          RecurrenceRule
	DueAt         time.Time
	Watermark     *time.Time
	HolidayListID string
	SkipHolidays  bool
	Enabled       bool
	CreatedAt     time.Time
}

func (d TaskDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("model: definition id is required")
	}
	if strings.TrimSpace(d.Template.Title) == "" {
		return errors.New("model: definition title is required")
	}
	if !d.Template.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, d.Template.Priority)
	}
	if d.DueAt.IsZero() {
		return errors.New("model: definition due date is required")
	}
	if d.SkipHolidays && strings.TrimSpace(d.HolidayListID) == "" {
		return errors.New("model: holiday list is required when skipping holidays")
	}
	return d.Rule.Validate()
}

// NewInstance builds the Upcoming instance for one occurrence of the definition.
func (d TaskDefinition) NewInstance(id string, due time.Time, createdAt time.Time) TaskInstance {
	tags := make([]string, len(d.Template.Tags))
	copy(tags, d.Template.Tags)
	tpl := d.Template
	tpl.Tags = tags
	return TaskInstance{
		ID:           id,
		DefinitionID: d.ID,
		Template:     tpl,
		Status:       StatusUpcoming,
		DueAt:        due,
		CreatedAt:    createdAt,
	}
}

type TaskInstance struct {
	ID           string
	DefinitionID string
	Template     Template
	Status       InstanceStatus
	DueAt        time.Time
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

func (t TaskInstance) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: instance id is required")
	}
	if strings.TrimSpace(t.DefinitionID) == "" {
		return errors.New("model: instance definition_id is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Template.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Template.Priority)
	}
	if t.DueAt.IsZero() {
		return errors.New("model: instance due_at is required")
	}
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		return errors.New("model: completed_at is required when instance status is Completed")
	}
	if t.Status != StatusCompleted && t.CompletedAt != nil {
		return errors.New("model: completed_at must be nil when instance status is not Completed")
	}
	return nil
}
