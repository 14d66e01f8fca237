package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Column is a table column. A zero Width sizes it to the widest cell.
type Column struct {
	Title string
	Width int
}

// RenderTable renders a static table for command output. It returns an
// empty string when there are no rows.
func RenderTable(columns []Column, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		width := c.Width
		if width == 0 {
			width = lipgloss.Width(c.Title)
			for _, r := range rows {
				if i < len(r) && lipgloss.Width(r[i]) > width {
					width = lipgloss.Width(r[i])
				}
			}
		}
		cols[i] = table.Column{Title: c.Title, Width: width}
	}

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(r)
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(tableRows),
		table.WithFocused(false),
		// header row plus its bottom border
		table.WithHeight(len(rows)+2),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is selectable in static output.
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return strings.TrimRight(t.View(), " \n")
}
