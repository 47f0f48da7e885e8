package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kausik11/taskify/internal/scheduler"
)

// Collector is a Queue that keeps planned events in memory, for one-shot
// runs that deliver what is already due instead of waiting on timers.
type Collector struct {
	mu     sync.Mutex
	events []scheduler.Event
	seen   map[string]struct{}
}

var _ Queue = (*Collector)(nil)

func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

func (c *Collector) Schedule(ev scheduler.Event) (bool, error) {
	if ev.TriggerAt.IsZero() {
		return false, scheduler.ErrInvalidTriggerTime
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[ev.Key()]; ok {
		return false, nil
	}
	c.seen[ev.Key()] = struct{}{}
	c.events = append(c.events, ev)
	return true, nil
}

// Events returns the collected events ordered by trigger time.
func (c *Collector) Events() []scheduler.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]scheduler.Event, len(c.events))
	copy(out, c.events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

type DeliverySummary struct {
	Delivered int
	Failed    int
	Deferred  int
}

// DeliverDue delivers every event triggering at or before now. Later events
// are only counted.
func (d *Dispatcher) DeliverDue(ctx context.Context, events []scheduler.Event, now time.Time) DeliverySummary {
	var sum DeliverySummary
	for _, ev := range events {
		if ev.TriggerAt.After(now) {
			sum.Deferred++
			continue
		}
		if err := d.Deliver(ctx, ev); err != nil {
			d.opts.logger.Error("notification delivery failed", "instance", ev.InstanceID, "rule", ev.RuleID, "error", err)
			sum.Failed++
			continue
		}
		sum.Delivered++
	}
	return sum
}
