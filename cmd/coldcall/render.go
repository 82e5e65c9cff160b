package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"coldcall/internal/console"
	"coldcall/internal/events"
	"coldcall/internal/poller"
	"coldcall/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	levelStyles = map[events.Level]lipgloss.Style{
		events.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		events.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		events.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		events.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func renderEvent(ev events.Event) string {
	style, ok := levelStyles[ev.Level]
	if !ok {
		style = lipgloss.NewStyle()
	}
	return style.Render(fmt.Sprintf("[%s] %s", ev.Level, ev.Message))
}

func renderOutcome(out console.Outcome) string {
	if !out.Persisted {
		return mutedStyle.Render(fmt.Sprintf("Call %s not recorded (status %s)", orDash(out.CallID), orDash(string(out.Status))))
	}
	return fmt.Sprintf("Recorded call #%d: %s", out.Record.ID, out.Record.Status)
}

func renderHistory(calls []store.CallRecord) string {
	if len(calls) == 0 {
		return mutedStyle.Render("No call history found.")
	}
	rows := make([][]string, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.Email,
			c.Phone,
			c.Status,
			orNotAvailable(c.Summary),
			orNotAvailable(c.RecordingURL),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers("ID", "Name", "Email", "Phone", "Status", "Summary", "Recording").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func orNotAvailable(v *string) string {
	if v == nil || *v == "" {
		return poller.NotAvailable
	}
	return *v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
