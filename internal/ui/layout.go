package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which labels are shortened
	// and the progress bar shrinks.
	LayoutCompactWidth = 80

	// progressBarMaxWidth caps the bar on wide terminals.
	progressBarMaxWidth = 60
)

// Vertical layout. The status panel has a fixed number of rows so the log
// panel gets everything else.
const (
	headerRows      = 1
	footerRows      = 1
	statusRows      = 7
	panelBorderRows = 2
	minLogRows      = 3
)

// Timing constants.
const (
	// DefaultUIInterval refreshes relative times while nothing is published.
	DefaultUIInterval = time.Second
)

func (m Model) contentWidth() int {
	return max(10, m.width-4) // panel border and padding
}

func (m Model) logWidth() int {
	return m.contentWidth()
}

func (m Model) logHeight() int {
	used := headerRows + footerRows + statusRows + 2*panelBorderRows
	return max(minLogRows, m.height-used)
}

func (m Model) compact() bool {
	return m.width > 0 && m.width < LayoutCompactWidth
}
