package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/five82/progwatch/internal/state"
)

// renderMain renders the full dashboard.
func (m Model) renderMain() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderStatus(),
		m.renderLogPanel(),
		m.renderFooter(),
	)
}

// renderHeader renders the top bar: name, run state, template and theme.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	snap := m.snapshot
	parts := []string{
		bg.Render("progwatch", styles.Logo),
		styles.StateStyle(snap.State).Render(strings.ToUpper(snap.State.String())),
	}
	if snap.Reason != "" && snap.State == state.Stopped {
		parts = append(parts, bg.Render(snap.Reason, styles.MutedText))
	}
	tmpl := snap.Template.String()
	if m.compact() {
		tmpl = snap.Template.Short()
	}
	parts = append(parts, bg.Render("template", styles.FaintText)+bg.Spaces(1)+bg.Render(tmpl, styles.AccentText))
	if !m.compact() {
		parts = append(parts, bg.Render("theme", styles.FaintText)+bg.Spaces(1)+bg.Render(m.theme.Name, styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, 2))
}

// renderStatus renders the fixed status panel.
func (m Model) renderStatus() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	width := m.contentWidth()

	label := func(s string) string {
		return styles.FaintText.Render(padRight(s, 12))
	}

	rows := make([]string, 0, statusRows)

	// File
	if m.editing {
		rows = append(rows, m.pathInput.View())
	} else {
		path := snap.Path
		if path == "" {
			path = m.path
		}
		value := styles.MutedText.Render("none selected")
		if path != "" {
			value = styles.Text.Render(truncatePath(path, width-12))
		}
		rows = append(rows, label("File")+value)
	}

	// Progress
	barWidth := min(progressBarMaxWidth, max(10, width-22))
	rows = append(rows, label("Progress")+m.renderProgressBar(snap.Percent, snap.HasPercent, barWidth)+
		" "+styles.Text.Bold(true).Render(snap.PercentDisplay()))

	rows = append(rows, label("Time left")+styles.Text.Render(strings.TrimSpace(snap.TimeLeftDisplay())))
	rows = append(rows, label("ETA")+styles.Text.Render(snap.ETADisplay()))

	// Counters
	errStyle := styles.MutedText
	if snap.Counters.Errors > 0 {
		errStyle = styles.DangerText
	}
	warnStyle := styles.MutedText
	if snap.Counters.Warnings > 0 {
		warnStyle = styles.WarningText
	}
	rows = append(rows, label("Anomalies")+
		errStyle.Render(fmt.Sprintf("%s errors", humanize.Comma(int64(snap.Counters.Errors))))+
		styles.FaintText.Render("  ·  ")+
		warnStyle.Render(fmt.Sprintf("%s warnings", humanize.Comma(int64(snap.Counters.Warnings)))))

	// First error
	first := styles.FaintText.Render("none")
	if snap.Counters.FirstError != "" {
		first = styles.DangerText.Render(truncate(snap.Counters.FirstError, width-12))
	}
	rows = append(rows, label("First error")+first)

	rows = append(rows, m.renderNotice(width))

	return styles.Panel.Width(width + 2).Render(strings.Join(rows, "\n"))
}

// renderNotice shows the outcome of the last control action, or the error
// that ended the run.
func (m Model) renderNotice(width int) string {
	styles := m.theme.Styles()
	switch {
	case m.notice != "":
		return styles.LevelStyle(m.noticeLevel).Render(truncate(m.notice, width))
	case m.snapshot.LastError != nil:
		return styles.DangerText.Render(truncate(m.snapshot.LastError.Error(), width))
	default:
		return ""
	}
}

// renderProgressBar renders a bar of the given width for a 0..1 ratio.
func (m Model) renderProgressBar(ratio float64, known bool, width int) string {
	filled := 0
	if known {
		filled = progressCells(ratio, width)
	}
	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BarFill))
	empty := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.BarEmpty))
	return fill.Render(strings.Repeat("█", filled)) + empty.Render(strings.Repeat("░", width-filled))
}

// progressCells returns how many of width cells a ratio fills.
func progressCells(ratio float64, width int) int {
	if width <= 0 || !(ratio > 0) {
		return 0
	}
	if ratio >= 1 {
		return width
	}
	return min(int(float64(width)*ratio), width)
}

// renderLogPanel renders the scrolling log viewport.
func (m Model) renderLogPanel() string {
	styles := m.theme.Styles()
	border := m.theme.Border
	if !m.follow {
		border = m.theme.BorderFocus
	}
	return styles.Panel.
		BorderForeground(lipgloss.Color(border)).
		Width(m.contentWidth() + 2).
		Render(m.logViewport.View())
}

// updateLogViewport rebuilds the log content from the snapshot.
func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	m.logViewport.SetContent(m.renderLogContent())
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if len(m.snapshot.Log) == 0 {
		return styles.FaintText.Render("No log entries yet")
	}
	width := m.logWidth()
	lines := make([]string, 0, len(m.snapshot.Log))
	for _, entry := range m.snapshot.Log {
		stamp := entry.At.Format("15:04:05.000")
		text := truncate(entry.Text, width-len(stamp)-1)
		lines = append(lines, styles.FaintText.Render(stamp)+" "+styles.LevelStyle(entry.Level).Render(text))
	}
	return strings.Join(lines, "\n")
}

// renderFooter renders key help on the left and run statistics on the right.
func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var left string
	if m.editing {
		left = m.help.ShortHelpView(inputKeyMap{keys: m.keys}.ShortHelp())
	} else {
		left = m.help.ShortHelpView(m.keys.ShortHelp())
	}

	right := bg.Render(m.footerStats(), styles.MutedText)
	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return styles.Footer.Width(m.width).Render(left)
	}
	return styles.Footer.Width(m.width).Render(left + bg.Spaces(gap) + right)
}

// footerStats summarizes line count and snapshot age.
func (m Model) footerStats() string {
	snap := m.snapshot
	lines := humanize.Comma(int64(snap.Lines)) + " lines"
	if snap.UpdatedAt.IsZero() {
		return lines
	}
	if m.now.Sub(snap.UpdatedAt) < 0 {
		return lines + " · updated now"
	}
	return lines + " · updated " + humanize.RelTime(snap.UpdatedAt, m.now, "ago", "from now")
}
