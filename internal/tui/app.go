// Package tui provides the terminal dashboard for a running gateway.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// PollInterval is how often the dashboard refreshes health and status.
const PollInterval = 2 * time.Second

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the dashboard model.
type App struct {
	client   *Client
	input    textinput.Model
	spinner  spinner.Model
	interval time.Duration
	width    int
	height   int

	online    bool
	health    *HealthReport
	status    *StatusReport
	statusErr error
	lastPoll  time.Time

	task        *TaskDetail
	lookingUp   string
	message     string
	messageIsOK bool
}

// New creates a dashboard for the gateway at apiAddr.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Enter a task id and press Enter"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(cyanColor)

	return &App{
		client:   NewClient(apiAddr),
		input:    ti,
		spinner:  sp,
		interval: PollInterval,
	}
}

// Run starts the dashboard and blocks until the user quits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.spinner.Tick,
		a.poll(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			a.task = nil
			a.message = ""
			a.input.SetValue("")
			return a, nil

		case "enter":
			id := strings.TrimSpace(a.input.Value())
			if id == "" {
				return a, nil
			}
			a.input.SetValue("")
			a.lookingUp = id
			return a, a.fetchTask(id)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(20, msg.Width-6)

	case pollMsg:
		a.lastPoll = msg.at
		a.online = msg.healthErr == nil
		a.health = msg.health
		a.status = msg.status
		a.statusErr = msg.statusErr
		// Schedule the next tick only after the current poll is complete.
		cmds = append(cmds, a.tickCmd())

	case tickMsg:
		return a, a.poll()

	case taskLoadedMsg:
		a.lookingUp = ""
		a.task = msg.task
		a.message = ""

	case errMsg:
		a.lookingUp = ""
		a.message = "Error: " + msg.err.Error()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	gateway := onlineStyle.Render("● ONLINE")
	if !a.online {
		gateway = offlineStyle.Render("○ OFFLINE")
	}
	header := titleStyle.Render("Claude Code Gateway") + "  " + gateway
	if a.lastPoll.IsZero() {
		header += "  " + a.spinner.View()
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 40)) + "\n")

	b.WriteString(panelStyle.Render(a.renderOverview()) + "\n")

	switch {
	case a.lookingUp != "":
		b.WriteString(fmt.Sprintf("\n  %s Looking up %s...\n", a.spinner.View(), a.lookingUp))
	case a.task != nil:
		b.WriteString(panelStyle.Render(renderTaskDetail(a.task, time.Now())) + "\n")
	}

	if a.message != "" {
		style := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			style = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + style.Render(a.message))
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n")

	bar := fmt.Sprintf(" Enter:lookup | Esc:clear | Ctrl+C:quit | refresh every %s", a.interval)
	b.WriteString(statusBarStyle.Width(max(a.width, 40)).Render(bar))

	return b.String()
}

func (a *App) renderOverview() string {
	if !a.online {
		if a.lastPoll.IsZero() {
			return "Connecting..."
		}
		return offlineStyle.Render("Gateway unreachable") + labelStyle.Render(" (last checked "+humanize.Time(a.lastPoll)+")")
	}

	var b strings.Builder
	h := a.health
	b.WriteString(fmt.Sprintf("%s %s %s\n", labelStyle.Render("Service:"), h.Service, h.Version))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Uptime: "), formatUptime(h.UptimeMS)))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Tasks:  "), humanize.Comma(int64(h.ActiveTasks))))

	switch {
	case a.statusErr != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(warningColor).Render("Claude Code: " + a.statusErr.Error()))
	case a.status != nil:
		t := a.status.Tasks
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Claude Code:"), a.status.ClaudeCodeVersion))
		b.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s",
			formatStatus("running"), humanize.Comma(int64(t.Running)),
			formatStatus("completed"), humanize.Comma(int64(t.Completed)),
			formatStatus("failed"), humanize.Comma(int64(t.Failed)),
		))
	}
	return b.String()
}

// --- Commands ---

type pollMsg struct {
	at        time.Time
	health    *HealthReport
	healthErr error
	status    *StatusReport
	statusErr error
}

type tickMsg time.Time

type taskLoadedMsg struct {
	task *TaskDetail
}

type errMsg struct {
	err error
}

func (a *App) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()

		msg := pollMsg{at: time.Now()}
		msg.health, msg.healthErr = a.client.Health(ctx)
		if msg.healthErr == nil {
			msg.status, msg.statusErr = a.client.Status(ctx)
		}
		return msg
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(a.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) fetchTask(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()

		task, err := a.client.GetTask(ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return taskLoadedMsg{task}
	}
}

func formatUptime(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}
