package storage

import "time"

type TaskDefinition struct {
	ID             string
	Title          string
	Description    string
	Assignee       string
	Priority       string
	Department     string
	Branch         string
	Tags           []string
	Frequency      string
	IntervalValue  int
	Weekdays       string
	MonthDays      string
	NthWeek        int
	EndDate        *time.Time
	ExceptionDate  *time.Time
	DueAt          time.Time
	GeneratedUntil *time.Time
	HolidayListID  string
	SkipHolidays   bool
	Enabled        bool
	CreatedAt      time.Time
}

type TaskInstance struct {
	ID           string
	DefinitionID string
	Title        string
	Assignee     string
	Priority     string
	Department   string
	Branch       string
	Tags         []string
	Status       string
	DueAt        time.Time
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

type HolidayList struct {
	ID        string
	Name      string
	FromDate  *time.Time
	ToDate    *time.Time
	WeeklyOff string
	CreatedAt time.Time
}

type Holiday struct {
	ListID      string
	Date        time.Time
	Description string
	WeeklyOff   bool
}

type NotificationRule struct {
	ID           string
	DefinitionID string
	Channel      string
	Phone        string
	Template     string
	DaysBefore   int
	SendAt       string
	Enabled      bool
	CreatedAt    time.Time
}

type NotificationLog struct {
	ID         string
	InstanceID string
	RuleID     string
	Status     string
	Error      string
	SentAt     time.Time
}

type RolePermission struct {
	Role    string
	Doctype string
	Read    bool
	Write   bool
	Create  bool
	Delete  bool
	Submit  bool
	Report  bool
	Export  bool
}

type StatusCount struct {
	Status string
	Count  int
}

type WorkloadRow struct {
	Assignee string
	Open     int
	Overdue  int
	DueToday int
}

type DefinitionListFilter struct {
	Enabled  *bool
	Assignee string
	Limit    int
	Offset   int
}

type InstanceListFilter struct {
	DefinitionID string
	Assignee     string
	Statuses     []string
	DueFrom      *time.Time
	DueBefore    *time.Time
	Limit        int
	Offset       int
}

type HolidayListFilter struct {
	ListID string
	From   *time.Time
	To     *time.Time
}

type NotificationRuleListFilter struct {
	DefinitionID string
	Enabled      *bool
}

type NotificationLogListFilter struct {
	InstanceID string
	Status     string
	Limit      int
	Offset     int
}

type RolePermissionListFilter struct {
	Role    string
	Roles   []string
	Doctype string
}
