// Package notify schedules and delivers reminders for upcoming task
// instances according to each definition's notification rules.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/scheduler"
	"github.com/kausik11/taskify/internal/storage"
)

const (
	LogStatusSent   = "Sent"
	LogStatusFailed = "Failed"
)

type Store interface {
	ListInstances(ctx context.Context, filter storage.InstanceListFilter) ([]storage.TaskInstance, error)
	GetInstance(ctx context.Context, id string) (storage.TaskInstance, error)
	ListNotificationRules(ctx context.Context, filter storage.NotificationRuleListFilter) ([]storage.NotificationRule, error)
	GetNotificationRule(ctx context.Context, id string) (storage.NotificationRule, error)
	HasNotificationLog(ctx context.Context, instanceID, ruleID string) (bool, error)
	CreateNotificationLog(ctx context.Context, in storage.NotificationLog) error
}

// Ahead creates instances before their due day. generator.Generator
// implements it.
type Ahead interface {
	GenerateAhead(ctx context.Context, definitionID string, now, until time.Time) (int, error)
}

// Queue is the part of scheduler.Engine the planner feeds.
type Queue interface {
	Schedule(ev scheduler.Event) (bool, error)
}

type Option func(*options)

type options struct {
	logger *slog.Logger
	loc    *time.Location
	newID  func() string
	now    func() time.Time
	ahead  Ahead
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLocation sets the timezone rule clocks are read in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithGenerator lets the planner create instances ahead of their due day so
// reminders with a lead time are planned on time.
func WithGenerator(a Ahead) Option {
	return func(o *options) {
		o.ahead = a
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:    time.UTC,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type PlanSummary struct {
	Generated int
	Instances int
	Scheduled int
}

type Planner struct {
	store Store
	queue Queue
	opts  options
}

func NewPlanner(store Store, queue Queue, opts ...Option) *Planner {
	return &Planner{store: store, queue: queue, opts: buildOptions(opts)}
}

// Plan queues every reminder that falls due within horizon of now for a
// pending instance and an enabled rule of its definition that has not fired
// yet. With WithGenerator, instances due up to the longest lead time past the
// horizon are created first, so a reminder days ahead of its instance's due
// date is planned before it is late.
func (p *Planner) Plan(ctx context.Context, now time.Time, horizon time.Duration) (PlanSummary, error) {
	var sum PlanSummary
	until := now.Add(horizon)

	rulesByDefinition, err := p.enabledRules(ctx)
	if err != nil {
		return sum, err
	}
	maxLead := 0
	for _, defID := range slices.Sorted(maps.Keys(rulesByDefinition)) {
		lead := leadDays(rulesByDefinition[defID])
		maxLead = max(maxLead, lead)
		if p.opts.ahead == nil {
			continue
		}
		n, err := p.opts.ahead.GenerateAhead(ctx, defID, now, until.AddDate(0, 0, lead))
		if err != nil {
			p.opts.logger.Warn("instances not generated ahead", "definition", defID, "error", err)
			continue
		}
		sum.Generated += n
	}

	dueBefore := until.AddDate(0, 0, maxLead)
	rows, err := p.store.ListInstances(ctx, storage.InstanceListFilter{
		Statuses:  []string{string(model.StatusUpcoming), string(model.StatusOpen)},
		DueFrom:   &now,
		DueBefore: &dueBefore,
	})
	if err != nil {
		return sum, fmt.Errorf("notify: list instances: %w", err)
	}

	for _, inst := range rows {
		rules := rulesByDefinition[inst.DefinitionID]
		if len(rules) == 0 {
			continue
		}
		sum.Instances++

		for _, rule := range rules {
			trigger, err := rule.TriggerFor(inst.DueAt.In(p.opts.loc))
			if err != nil {
				return sum, err
			}
			if trigger.After(until) {
				continue
			}
			sent, err := p.store.HasNotificationLog(ctx, inst.ID, rule.ID)
			if err != nil {
				return sum, fmt.Errorf("notify: check log: %w", err)
			}
			if sent {
				continue
			}
			queued, err := p.queue.Schedule(scheduler.Event{InstanceID: inst.ID, RuleID: rule.ID, TriggerAt: trigger})
			if err != nil {
				return sum, fmt.Errorf("notify: schedule %s/%s: %w", inst.ID, rule.ID, err)
			}
			if queued {
				sum.Scheduled++
			}
		}
	}
	p.opts.logger.Info("notifications planned",
		"generated", sum.Generated, "instances", sum.Instances, "scheduled", sum.Scheduled)
	return sum, nil
}

// enabledRules loads every enabled, valid rule grouped by definition.
func (p *Planner) enabledRules(ctx context.Context) (map[string][]model.NotificationRule, error) {
	enabled := true
	stored, err := p.store.ListNotificationRules(ctx, storage.NotificationRuleListFilter{Enabled: &enabled})
	if err != nil {
		return nil, fmt.Errorf("notify: list rules: %w", err)
	}
	out := make(map[string][]model.NotificationRule)
	for _, row := range stored {
		rule := RuleFromRow(row)
		if err := rule.Validate(); err != nil {
			p.opts.logger.Warn("notification rule ignored", "rule", row.ID, "error", err)
			continue
		}
		out[rule.DefinitionID] = append(out[rule.DefinitionID], rule)
	}
	return out, nil
}

// leadDays is how many days before its due date the earliest rule fires.
func leadDays(rules []model.NotificationRule) int {
	lead := 0
	for _, r := range rules {
		lead = max(lead, r.DaysBefore)
	}
	return lead
}

type Dispatcher struct {
	store   Store
	senders map[model.Channel]Sender
	opts    options
}

func NewDispatcher(store Store, senders map[model.Channel]Sender, opts ...Option) *Dispatcher {
	return &Dispatcher{store: store, senders: senders, opts: buildOptions(opts)}
}

// Run delivers events until ctx is done or events is closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan scheduler.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := d.Deliver(ctx, ev); err != nil {
				d.opts.logger.Error("notification delivery failed", "instance", ev.InstanceID, "rule", ev.RuleID, "error", err)
			}
		}
	}
}

var ErrNoSender = errors.New("notify: no sender for channel")

// Deliver sends one reminder and records the outcome. Instances that are no
// longer pending, disabled rules and already-logged pairs are skipped.
// A failed send is logged with status Failed and never retried.
func (d *Dispatcher) Deliver(ctx context.Context, ev scheduler.Event) error {
	inst, err := d.store.GetInstance(ctx, ev.InstanceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: load instance: %w", err)
	}
	if !model.InstanceStatus(inst.Status).IsPending() {
		return nil
	}
	row, err := d.store.GetNotificationRule(ctx, ev.RuleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: load rule: %w", err)
	}
	rule := RuleFromRow(row)
	if !rule.Enabled {
		return nil
	}
	sent, err := d.store.HasNotificationLog(ctx, inst.ID, rule.ID)
	if err != nil {
		return fmt.Errorf("notify: check log: %w", err)
	}
	if sent {
		return nil
	}

	sendErr := d.send(ctx, inst, rule)
	entry := storage.NotificationLog{
		ID:         d.opts.newID(),
		InstanceID: inst.ID,
		RuleID:     rule.ID,
		Status:     LogStatusSent,
		SentAt:     d.opts.now().UTC(),
	}
	if sendErr != nil {
		entry.Status = LogStatusFailed
		entry.Error = sendErr.Error()
	}
	if err := d.store.CreateNotificationLog(ctx, entry); err != nil {
		return fmt.Errorf("notify: record log: %w", err)
	}
	if sendErr != nil {
		return sendErr
	}
	d.opts.logger.Info("notification sent", "instance", inst.ID, "rule", rule.ID, "channel", rule.Channel)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, inst storage.TaskInstance, rule model.NotificationRule) error {
	sender, ok := d.senders[rule.Channel]
	if !ok || sender == nil {
		return fmt.Errorf("%w: %s", ErrNoSender, rule.Channel)
	}
	due := inst.DueAt.In(d.opts.loc)
	body, err := Render(rule.Template, MessageData{
		Title:      inst.Title,
		Assignee:   inst.Assignee,
		Priority:   inst.Priority,
		Department: inst.Department,
		Branch:     inst.Branch,
		Due:        due.Format("Mon 02 Jan 2006 15:04"),
		DueAt:      due,
		DaysBefore: rule.DaysBefore,
	})
	if err != nil {
		return err
	}
	return sender.Send(ctx, Message{
		InstanceID: inst.ID,
		RuleID:     rule.ID,
		Channel:    rule.Channel,
		To:         rule.Phone,
		Body:       body,
	})
}

func RuleFromRow(row storage.NotificationRule) model.NotificationRule {
	return model.NotificationRule{
		ID:           row.ID,
		DefinitionID: row.DefinitionID,
		Channel:      model.Channel(row.Channel),
		Phone:        row.Phone,
		Template:     row.Template,
		DaysBefore:   row.DaysBefore,
		SendAt:       row.SendAt,
		Enabled:      row.Enabled,
	}
}
