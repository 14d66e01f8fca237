package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/fleetwatch/internal/resample"
)

// Fallback size before the first WindowSizeMsg arrives.
const (
	defaultWidth  = 100
	defaultHeight = 32
)

// Rows used by everything except the charts: header, tabs, footer, spacing.
const chromeHeight = 6

func (m Model) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("fleetwatch")

	status := "loading"
	if !m.lastUpdate.IsZero() {
		status = "updated " + m.lastUpdate.Format("15:04:05")
	}
	stats := LabelStyle.Render(fmt.Sprintf(" | %d devices | last %s | %s",
		len(m.devices), m.Range().Label, status))

	return HeaderStyle.Render(title + stats)
}

func (m Model) renderTabs() string {
	if len(m.devices) == 0 {
		return TabStyle.Render("no devices")
	}
	tabs := make([]string, len(m.devices))
	for i, d := range m.devices {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		if i == m.selected {
			tabs[i] = ActiveTabStyle.Render(name)
		} else {
			tabs[i] = TabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderBody() string {
	if m.err != nil {
		return ErrorStyle.Render("refresh failed: " + m.err.Error())
	}
	if len(m.devices) == 0 {
		if m.loading {
			return LabelStyle.Render("Loading...")
		}
		return LabelStyle.Render("No devices have reported yet.")
	}
	if len(m.series) == 0 {
		return LabelStyle.Render("Loading...")
	}

	w, h := m.size()
	panelW := w / 2
	panelH := (h - chromeHeight) / 2

	panels := make([]string, len(m.series))
	for i, s := range m.series {
		panels[i] = m.renderPanel(s, panelW, panelH)
	}

	var rows []string
	for i := 0; i < len(panels); i += 2 {
		if i+1 < len(panels) {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, panels[i], panels[i+1]))
		} else {
			rows = append(rows, panels[i])
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func channelColor(ch resample.Channel) lipgloss.Color {
	switch ch {
	case resample.RAM:
		return ColorRAM
	case resample.NetworkIn:
		return ColorNetworkIn
	case resample.NetworkOut:
		return ColorNetworkOut
	default:
		return ColorCPU
	}
}

// renderPanel draws one bordered chart: title, y labels on the left and the
// window span underneath. outerW and outerH include the border.
func (m Model) renderPanel(s resample.Series, outerW, outerH int) string {
	// border (2) + padding (2)
	innerW := outerW - 4
	// border (2) + title + x axis
	chartH := outerH - 4
	if chartH < 1 {
		chartH = 1
	}

	var ref float64
	refNote := ""
	if s.Channel == resample.RAM && m.ramTotal > 0 {
		ref = s.Unit.Scale(float64(m.ramTotal))
		refNote = "  total " + resample.Format(float64(m.ramTotal), resample.ByteUnits)
	}

	lo, hi := ChartBounds(s, ref)
	top := axisLabel(hi, s.Unit)
	bottom := axisLabel(lo, s.Unit)
	gutter := lipgloss.Width(top)
	if w := lipgloss.Width(bottom); w > gutter {
		gutter = w
	}

	chartW := innerW - gutter - 1
	if chartW < 1 {
		chartW = 1
	}

	title := ChartTitleStyle.Render(s.Channel.String()) +
		LabelStyle.Render(fmt.Sprintf(" (%s)", s.Unit.Name)) +
		lipgloss.NewStyle().Foreground(ColorReference).Render(refNote)

	var body string
	if s.Empty() {
		body = lipgloss.Place(innerW, chartH, lipgloss.Center, lipgloss.Center,
			LabelStyle.Render("no data in range"))
	} else {
		labels := make([]string, chartH)
		labels[0] = top
		if chartH > 1 {
			labels[chartH-1] = bottom
		}
		yAxis := AxisStyle.Width(gutter).Align(lipgloss.Right).Render(strings.Join(labels, "\n"))
		chart := RenderChart(s, ref, chartW, chartH, channelColor(s.Channel))
		body = lipgloss.JoinHorizontal(lipgloss.Top, yAxis, " ", chart)
	}

	xAxis := m.renderXAxis(s, innerW, gutter)
	content := lipgloss.JoinVertical(lipgloss.Left, title, body, xAxis)
	return ChartStyle.Width(outerW - 2).Render(content)
}

// renderXAxis labels the left edge with the window span in its chosen time
// unit and the right edge with "now".
func (m Model) renderXAxis(s resample.Series, innerW, gutter int) string {
	left := "-" + resample.FormatIn(s.Window, s.XUnit)
	right := "now"
	pad := innerW - gutter - 1 - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return AxisStyle.Render(strings.Repeat(" ", gutter+1) + left + strings.Repeat(" ", pad) + right)
}

func (m Model) renderFooter() string {
	return FooterStyle.Render(m.help.View(keys))
}
