package update

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kausik11/taskify/internal/views"
)

func (m Model) Init() tea.Cmd {
	load := m.loadCmd()
	if load == nil {
		return m.tickCmd()
	}
	return tea.Batch(load, m.spinner.Tick, m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch keyStr := typed.String(); keyStr {
		case "ctrl+c", m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		case m.Keys.Summary:
			m.switchView(ViewSummary)
			return m, nil
		case m.Keys.Overdue:
			m.switchView(ViewOverdue)
			return m, nil
		case m.Keys.Upcoming:
			m.switchView(ViewUpcoming)
			return m, nil
		case m.Keys.Workload:
			m.switchView(ViewWorkload)
			return m, nil
		case "tab":
			m.switchView(nextView(m.CurrentView))
			return m, nil
		case m.Keys.Help:
			m.HelpVisible = !m.HelpVisible
			return m, nil
		case m.Keys.Refresh:
			return m.startLoad()
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(typed)
		return m, cmd
	case SwitchViewMsg:
		if isKnownView(typed.View) {
			m.switchView(typed.View)
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ReportsLoadedMsg:
		m.Loading = false
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			return m, nil
		}
		m.LastError = nil
		m.Data = typed.Data
		m.syncTable()
		m.Status = StatusBar{Text: fmt.Sprintf("loaded %d instances at %s", m.Data.Summary.Total, m.Data.LoadedAt.Format("15:04:05"))}
		return m, nil
	case RefreshTickMsg:
		next, cmd := m.startLoad()
		return next, tea.Batch(cmd, m.tickCmd())
	case spinner.TickMsg:
		if m.Loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(typed)
			return m, cmd
		}
	}
	return m, nil
}

// startLoad is a no-op while a load is already in flight.
func (m Model) startLoad() (tea.Model, tea.Cmd) {
	if m.Loading {
		return m, nil
	}
	load := m.loadCmd()
	if load == nil {
		m.Status = StatusBar{Text: "no report source configured", IsError: true}
		return m, nil
	}
	m.Loading = true
	m.Status = StatusBar{Text: "loading reports"}
	return m, tea.Batch(load, m.spinner.Tick)
}

func (m *Model) switchView(v View) {
	if v == m.CurrentView {
		return
	}
	m.CurrentView = v
	m.table.GotoTop()
	m.syncTable()
}

func nextView(v View) View {
	for i, known := range allViews {
		if known == v {
			return allViews[(i+1)%len(allViews)]
		}
	}
	return ViewSummary
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}
	notification := ""
	if m.Loading {
		notification = m.spinner.View() + " loading reports"
	}
	asOf := "never"
	if !m.Data.LoadedAt.IsZero() {
		asOf = m.Data.LoadedAt.Format("Mon 02 Jan 15:04")
	}

	tabs := make([]string, 0, len(allViews))
	for _, v := range allViews {
		tabs = append(tabs, string(v))
	}
	right := views.RenderMarkdown(m.detailMarkdown())
	if help := m.renderHelpIfVisible(); help != "" {
		right = strings.TrimSpace(right + "\n\n" + help)
	}

	return views.RenderApp(views.AppData{
		Header:       fmt.Sprintf("taskify | %s | as of %s", views.RenderTabs(tabs, string(m.CurrentView)), asOf),
		LeftPane:     m.table.View(),
		RightPane:    right,
		StatusLine:   status,
		Notification: notification,
		Footer: fmt.Sprintf("keys: %s summary | %s overdue | %s upcoming | %s workload | %s refresh | %s help | %s quit",
			m.Keys.Summary, m.Keys.Overdue, m.Keys.Upcoming, m.Keys.Workload, m.Keys.Refresh, m.Keys.Help, m.Keys.Quit),
	})
}
