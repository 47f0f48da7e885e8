package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named periodic task.
type Job struct {
	Name string
	// Spec is a 5-field cron expression or a descriptor such as "@daily" or "@every 15m".
	Spec string
	Run  func(ctx context.Context) error
}

// Runner drives Jobs on cron schedules. A job whose previous run is still in
// progress is skipped, and a panicking job is recovered and logged.
type Runner struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger
}

type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	loc    *time.Location
	logger *slog.Logger
}

func WithRunnerLocation(loc *time.Location) RunnerOption {
	return func(c *runnerConfig) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(c *runnerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

func NewRunner(opts ...RunnerOption) *Runner {
	cfg := runnerConfig{
		loc:    time.UTC,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	parser := newParser()
	cl := cronLogger{l: cfg.logger}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(cfg.loc),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser: parser,
		logger: cfg.logger,
	}
}

// Add registers job. Its Run receives ctx on every tick.
func (r *Runner) Add(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.Name) == "" {
		return errors.New("scheduler: job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("scheduler: job %s has no run func", job.Name)
	}
	if strings.TrimSpace(job.Spec) == "" {
		return fmt.Errorf("scheduler: job %s has no schedule", job.Name)
	}
	_, err := r.cron.AddFunc(job.Spec, func() {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			r.logger.Error("job failed", "job", job.Name, "duration", time.Since(start), "error", err)
			return
		}
		r.logger.Info("job finished", "job", job.Name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %s: invalid schedule %q: %w", job.Name, job.Spec, err)
	}
	return nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// running jobs to finish.
func (r *Runner) Run(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}

// Next lists the next activation of every registered job.
func (r *Runner) Next() []time.Time {
	entries := r.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

// ValidateSpec checks a schedule expression without registering it.
func ValidateSpec(spec string) error {
	_, err := newParser().Parse(spec)
	return err
}

// NextRun calculates the next activation of spec after the given time.
func NextRun(spec string, after time.Time) (time.Time, error) {
	schedule, err := newParser().Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
