package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)
)

// maxOutputLines caps how much of a task's results the panel shows.
const maxOutputLines = 12

func renderTaskDetail(t *TaskDetail, now time.Time) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(t.TaskDescription) + "\n")
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("ID:      "), t.TaskID))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Status:  "), formatStatus(t.Status)))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Project: "), t.ProjectPath))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Priority:"), t.Priority))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Started: "), relativeTime(t.StartedAt, now)))
	if t.CompletedAt != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Finished:"), relativeTime(t.CompletedAt, now)))
	}
	if t.FailedAt != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Failed:  "), relativeTime(t.FailedAt, now)))
	}
	if t.Context != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Context: "), t.Context))
	}

	if t.Results != nil {
		b.WriteString(sectionStyle.Render("Results") + "\n")
		b.WriteString(clip(*t.Results, maxOutputLines))
	}
	if t.Error != nil {
		b.WriteString(sectionStyle.Render("Error") + "\n")
		b.WriteString(lipgloss.NewStyle().Foreground(errorColor).Render(clip(*t.Error, maxOutputLines)))
	}
	return b.String()
}

func formatStatus(status string) string {
	switch status {
	case "running":
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ RUNNING")
	case "completed":
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE")
	case "failed":
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗ FAILED")
	default:
		return status
	}
}

// relativeTime renders an RFC 3339 timestamp as "3 minutes ago". Unparseable
// values are shown as-is.
func relativeTime(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func clip(s string, lines int) string {
	parts := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(parts) <= lines {
		return strings.Join(parts, "\n") + "\n"
	}
	more := len(parts) - lines
	return strings.Join(parts[:lines], "\n") + fmt.Sprintf("\n… %d more lines\n", more)
}
