package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kausik11/taskify/internal/calendar"
	"github.com/kausik11/taskify/internal/commands"
	"github.com/kausik11/taskify/internal/config"
	"github.com/kausik11/taskify/internal/generator"
	"github.com/kausik11/taskify/internal/holiday"
	"github.com/kausik11/taskify/internal/model"
	"github.com/kausik11/taskify/internal/notify"
	"github.com/kausik11/taskify/internal/permissions"
	"github.com/kausik11/taskify/internal/report"
	"github.com/kausik11/taskify/internal/scheduler"
	"github.com/kausik11/taskify/internal/seed"
	"github.com/kausik11/taskify/internal/session"
	"github.com/kausik11/taskify/internal/storage"
	"github.com/kausik11/taskify/internal/update"
)

const dashboardRefresh = time.Minute

type app struct {
	cfg     config.RuntimeConfig
	repo    *storage.SQLiteRepository
	logger  *slog.Logger
	out     io.Writer
	loc     *time.Location
	now     func() time.Time
	checker *permissions.Checker

	holidays  *holiday.Service
	generator *generator.Generator
	reports   *report.Service
}

func newApp(cfg config.RuntimeConfig, repo *storage.SQLiteRepository, logger *slog.Logger, out io.Writer) *app {
	loc := cfg.Location()
	checker := permissions.NewChecker(repo)
	holidays := holiday.NewService(repo, holiday.WithLogger(logger), holiday.WithLocation(loc))
	return &app{
		cfg:     cfg,
		repo:    repo,
		logger:  logger,
		out:     out,
		loc:     loc,
		now:     time.Now,
		checker: checker,

		holidays: holidays,
		generator: generator.New(repo, checker,
			generator.WithLogger(logger),
			generator.WithLocation(loc),
			generator.WithHolidays(holidays),
		),
		reports: report.NewService(repo, checker, loc),
	}
}

func (a *app) handlers() commands.Handlers {
	return commands.Handlers{
		Generate:    a.generate,
		Holidays:    a.regenerateHolidays,
		Notify:      a.notifyOnce,
		Report:      a.report,
		Permissions: a.permissions,
		Import:      a.importSeed,
		Export:      a.export,
		Daemon:      a.daemon,
		Dashboard:   a.dashboard,
		Preview:     a.preview,
	}
}

func (a *app) generate(ctx context.Context) (commands.Result, error) {
	now := a.now()
	sum, err := a.generator.Run(ctx, now)
	if err != nil {
		return commands.Result{}, err
	}
	overdue, err := a.generator.MarkOverdue(ctx, now)
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("definitions=%d generated=%d skipped=%d failed=%d overdue=%d",
		sum.Definitions, sum.Generated, sum.Skipped, sum.Failed, overdue)}, nil
}

func (a *app) regenerateHolidays(ctx context.Context, args commands.HolidaysArgs) (commands.Result, error) {
	if err := a.checker.Require(ctx, permissions.DoctypeHolidayList, permissions.Write); err != nil {
		return commands.Result{}, err
	}
	var (
		n   int
		err error
	)
	if args.ListID == commands.AllLists {
		n, err = a.holidays.RegenerateAll(ctx, a.now())
	} else {
		n, err = a.holidays.Regenerate(ctx, args.ListID, a.now())
	}
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("weekly offs written: %d", n)}, nil
}

func (a *app) senders() (map[model.Channel]notify.Sender, error) {
	senders := map[model.Channel]notify.Sender{
		model.ChannelLog: notify.LogSender{Logger: a.logger},
	}
	if strings.TrimSpace(a.cfg.WhatsAppURL) == "" {
		a.logger.Warn("whatsapp url not configured, whatsapp reminders are logged only")
		senders[model.ChannelWhatsApp] = notify.LogSender{Logger: a.logger}
		return senders, nil
	}
	wa, err := notify.NewWhatsAppSender(a.cfg.WhatsAppURL, a.cfg.WhatsAppToken, nil)
	if err != nil {
		return nil, err
	}
	senders[model.ChannelWhatsApp] = wa
	return senders, nil
}

func (a *app) notifyOptions() []notify.Option {
	return []notify.Option{notify.WithLogger(a.logger), notify.WithLocation(a.loc), notify.WithGenerator(a.generator)}
}

func (a *app) notifyOnce(ctx context.Context) (commands.Result, error) {
	if err := a.checker.Require(ctx, permissions.DoctypeNotificationRule, permissions.Submit); err != nil {
		return commands.Result{}, err
	}
	senders, err := a.senders()
	if err != nil {
		return commands.Result{}, err
	}
	now := a.now()
	collector := notify.NewCollector()
	plan, err := notify.NewPlanner(a.repo, collector, a.notifyOptions()...).Plan(ctx, now, a.cfg.NotifyHorizon)
	if err != nil {
		return commands.Result{}, err
	}
	sum := notify.NewDispatcher(a.repo, senders, a.notifyOptions()...).DeliverDue(ctx, collector.Events(), now)
	return commands.Result{Message: fmt.Sprintf("ahead=%d instances=%d planned=%d delivered=%d failed=%d deferred=%d",
		plan.Generated, plan.Instances, plan.Scheduled, sum.Delivered, sum.Failed, sum.Deferred)}, nil
}

func (a *app) preview(ctx context.Context, args commands.PreviewArgs) (commands.Result, error) {
	next, err := a.generator.Preview(ctx, args.DefinitionID, a.now(), args.Count)
	if err != nil {
		return commands.Result{}, err
	}
	if len(next) == 0 {
		return commands.Result{Message: fmt.Sprintf("%s has no upcoming occurrences", args.DefinitionID)}, nil
	}
	lines := make([]string, 0, len(next))
	for _, t := range next {
		lines = append(lines, t.In(a.loc).Format("Mon 02 Jan 2006 15:04"))
	}
	return commands.Result{Message: strings.Join(lines, "\n")}, nil
}

func (a *app) report(ctx context.Context, args commands.ReportArgs) (commands.Result, error) {
	now := a.now()
	var md string
	switch args.Kind {
	case commands.ReportSummary:
		sum, err := a.reports.StatusSummary(ctx)
		if err != nil {
			return commands.Result{}, err
		}
		md = report.SummaryMarkdown(sum)
	case commands.ReportOverdue:
		rows, err := a.reports.Overdue(ctx, now)
		if err != nil {
			return commands.Result{}, err
		}
		md = report.OverdueMarkdown(rows)
	case commands.ReportUpcoming:
		rows, err := a.reports.Upcoming(ctx, now, a.cfg.UpcomingDays)
		if err != nil {
			return commands.Result{}, err
		}
		md = report.UpcomingMarkdown(rows, a.cfg.UpcomingDays)
	case commands.ReportWorkload:
		rows, err := a.reports.Workload(ctx, now)
		if err != nil {
			return commands.Result{}, err
		}
		md = report.WorkloadMarkdown(rows)
	default:
		return commands.Result{}, fmt.Errorf("unknown report %q", args.Kind)
	}
	return commands.Result{Message: strings.TrimRight(md, "\n")}, nil
}

// applyPermissions loads a mapping file as the system actor. It is used for
// the configured permissions file at startup.
func (a *app) applyPermissions(ctx context.Context, path string) (int, error) {
	mappings, err := permissions.Load(path)
	if err != nil {
		return 0, err
	}
	n, err := permissions.Apply(session.WithActor(ctx, session.System()), a.repo, mappings)
	if err != nil {
		return n, err
	}
	a.logger.Debug("permissions applied", "path", path, "rows", n)
	return n, nil
}

func (a *app) permissions(ctx context.Context, args commands.PathArgs) (commands.Result, error) {
	actor, ok := session.ActorFromContext(ctx)
	if !ok {
		return commands.Result{}, permissions.ErrNoActor
	}
	if !actor.HasRole(session.AdministratorRole) {
		return commands.Result{}, fmt.Errorf("%w: only %s may change role permissions", permissions.ErrForbidden, session.AdministratorRole)
	}
	n, err := a.applyPermissions(ctx, args.Path)
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("role permissions written: %d", n)}, nil
}

func (a *app) importSeed(ctx context.Context, args commands.PathArgs) (commands.Result, error) {
	f, err := seed.LoadFile(args.Path)
	if err != nil {
		return commands.Result{}, err
	}
	res, err := seed.NewImporter(a.repo, a.checker, a.loc).Apply(ctx, f, a.now())
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("holiday_lists=%d holidays=%d definitions=%d notifications=%d",
		res.HolidayLists, res.Holidays, res.Definitions, res.Notifications)}, nil
}

func (a *app) export(ctx context.Context, args commands.ExportArgs) (res commands.Result, err error) {
	w := a.out
	if args.Path != "" {
		var f *os.File
		if f, err = os.Create(args.Path); err != nil {
			return commands.Result{}, err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	switch args.Kind {
	case commands.ExportDefinitions:
		err = a.exportDefinitions(ctx, w)
	case commands.ExportHolidays:
		err = a.exportHolidays(ctx, w)
	default:
		err = fmt.Errorf("unknown export %q", args.Kind)
	}
	if err != nil {
		return commands.Result{}, err
	}
	if args.Path != "" {
		res.Message = fmt.Sprintf("wrote %s", args.Path)
	}
	return res, nil
}

func (a *app) exportDefinitions(ctx context.Context, w io.Writer) error {
	if err := a.checker.Require(ctx, permissions.DoctypeTask, permissions.Export); err != nil {
		return err
	}
	rows, err := a.repo.ListDefinitions(ctx, storage.DefinitionListFilter{})
	if err != nil {
		return err
	}
	defs := make([]model.TaskDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := generator.DefinitionFromRow(row, a.loc)
		if err != nil {
			a.logger.Warn("definition left out of export", "definition", row.ID, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return calendar.ExportDefinitions(w, defs, a.now())
}

func (a *app) exportHolidays(ctx context.Context, w io.Writer) error {
	if err := a.checker.Require(ctx, permissions.DoctypeHolidayList, permissions.Export); err != nil {
		return err
	}
	lists, err := a.repo.ListHolidayLists(ctx)
	if err != nil {
		return err
	}
	var all []model.Holiday
	names := make([]string, 0, len(lists))
	for _, l := range lists {
		rows, err := a.repo.ListHolidays(ctx, storage.HolidayListFilter{ListID: l.ID})
		if err != nil {
			return err
		}
		for _, h := range rows {
			all = append(all, model.Holiday{ListID: h.ListID, Date: h.Date, Description: h.Description, WeeklyOff: h.WeeklyOff})
		}
		names = append(names, l.Name)
	}
	return calendar.ExportHolidays(w, strings.Join(names, ", "), all, a.now())
}

// daemon runs the cron jobs and the reminder engine until ctx is cancelled.
func (a *app) daemon(ctx context.Context) (commands.Result, error) {
	senders, err := a.senders()
	if err != nil {
		return commands.Result{}, err
	}
	engine := scheduler.NewEngine(a.cfg.SchedulerBuffer)
	engine.Start()
	planner := notify.NewPlanner(a.repo, engine, a.notifyOptions()...)
	dispatcher := notify.NewDispatcher(a.repo, senders, a.notifyOptions()...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = dispatcher.Run(ctx, engine.C())
	}()
	defer func() {
		engine.Stop()
		wg.Wait()
		if dropped := engine.Dropped(); dropped > 0 {
			a.logger.Warn("reminders dropped", "count", dropped)
		}
	}()

	jobs := []scheduler.Job{
		{Name: "holidays", Spec: a.cfg.HolidaySpec, Run: func(ctx context.Context) error {
			_, err := a.holidays.RegenerateAll(ctx, a.now())
			return err
		}},
		{Name: "generate", Spec: a.cfg.GenerateSpec, Run: func(ctx context.Context) error {
			_, err := a.generate(ctx)
			return err
		}},
		{Name: "notify", Spec: a.cfg.NotifySpec, Run: func(ctx context.Context) error {
			_, err := planner.Plan(ctx, a.now(), a.cfg.NotifyHorizon)
			return err
		}},
	}

	runner := scheduler.NewRunner(scheduler.WithRunnerLocation(a.loc), scheduler.WithRunnerLogger(a.logger))
	var startup []error
	for _, job := range jobs {
		if err := runner.Add(ctx, job); err != nil {
			return commands.Result{}, err
		}
		// Catch up once so a fresh start does not wait for the first tick.
		if err := job.Run(ctx); err != nil {
			startup = append(startup, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	if err := errors.Join(startup...); err != nil {
		a.logger.Error("startup run failed", "error", err)
	}

	a.logger.Info("daemon started", "timezone", a.loc.String(), "next", runner.Next())
	if err := runner.Run(ctx); err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: "daemon stopped"}, nil
}

func (a *app) dashboard(ctx context.Context) (commands.Result, error) {
	m := update.NewModel(ctx, a.reports,
		update.WithUpcomingDays(a.cfg.UpcomingDays),
		update.WithRefreshInterval(dashboardRefresh),
	)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return commands.Result{}, err
	}
	return commands.Result{}, nil
}
