// Package ui renders the plain (non-TUI) output of fleetwatch commands:
// status lines with symbols and device tables.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolWarning = "!"
	SymbolInfo    = "•"
)

// ANSI colour codes keep plain output readable on any terminal theme.
const (
	ColorSuccess lipgloss.Color = "2"
	ColorError   lipgloss.Color = "1"
	ColorWarning lipgloss.Color = "3"
	ColorInfo    lipgloss.Color = "6"
	ColorPrimary lipgloss.Color = "7"
	ColorMuted   lipgloss.Color = "8"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	infoStyle    = lipgloss.NewStyle().Foreground(ColorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

func line(w io.Writer, style lipgloss.Style, symbol, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", style.Render(symbol), fmt.Sprintf(format, args...))
}

// Success prints "✓ message".
func Success(w io.Writer, format string, args ...any) {
	line(w, successStyle, SymbolSuccess, format, args...)
}

// Fail prints "✗ message".
func Fail(w io.Writer, format string, args ...any) {
	line(w, errorStyle, SymbolFail, format, args...)
}

// Warn prints "! message".
func Warn(w io.Writer, format string, args ...any) {
	line(w, warningStyle, SymbolWarning, format, args...)
}

// Info prints "• message".
func Info(w io.Writer, format string, args ...any) {
	line(w, infoStyle, SymbolInfo, format, args...)
}

// Muted renders s in the secondary text colour.
func Muted(s string) string {
	return mutedStyle.Render(s)
}
