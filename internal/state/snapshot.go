package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/progwatch/internal/estimate"
	"github.com/five82/progwatch/internal/lineparse"
)

// RunState is the lifecycle position of a monitoring session.
type RunState int

const (
	Idle RunState = iota
	Running
	Stopped
)

// String implements fmt.Stringer.
func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Level classifies a log panel entry.
type Level int

const (
	// LevelLine marks a raw line copied from the monitored file.
	LevelLine Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelLine:
		return "line"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// LogEntry is one line of the log panel: either a raw line read from the
// monitored file or a diagnostic produced while processing it.
type LogEntry struct {
	At    time.Time
	Level Level
	Text  string
}

// Counters tally anomalies for the current session. They only grow until the
// session is reset.
type Counters struct {
	Errors     uint64
	Warnings   uint64
	FirstError string // first line that counted as an error
}

// Snapshot is the published view of a session.
type Snapshot struct {
	Seq        uint64
	State      RunState
	RunID      string
	Path       string
	Template   lineparse.Template
	Percent    float64
	HasPercent bool
	Estimate   estimate.Estimate
	Counters   Counters
	Lines      uint64 // lines read during the current run
	Log        []LogEntry
	Reason     string // why the last run ended
	LastError  error
	UpdatedAt  time.Time
}

// Initial is the snapshot of a session that has never run.
func Initial(t lineparse.Template) Snapshot {
	return Snapshot{State: Idle, Template: t}
}

// TimeLeftDisplay renders the remaining time the way the status panel shows
// it: "Calculating" until a rate exists, then "Hh Mm Ss" with zero components
// left out.
func (s Snapshot) TimeLeftDisplay() string {
	switch s.Estimate.Phase {
	case estimate.PhaseCalculating:
		return "Calculating"
	case estimate.PhaseReady:
		return FormatTimeLeft(s.Estimate.TimeLeft)
	default:
		return ""
	}
}

// ETADisplay renders the ETA in the session's timestamp layout.
func (s Snapshot) ETADisplay() string {
	switch s.Estimate.Phase {
	case estimate.PhaseCalculating:
		return "Calculating"
	case estimate.PhaseReady:
		return s.Template.Format(s.Estimate.ETA)
	default:
		return ""
	}
}

// PercentDisplay renders the completion percentage with two decimals.
func (s Snapshot) PercentDisplay() string {
	if !s.HasPercent {
		return ""
	}
	return fmt.Sprintf("%.2f%%", s.Percent*100)
}

// FormatTimeLeft renders d as right-aligned hour, minute and second fields.
// Fields that are zero are dropped; seconds are always shown when nothing
// else is.
func FormatTimeLeft(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%2dh ", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%2dm ", m)
	}
	if sec > 0 || b.Len() == 0 {
		fmt.Fprintf(&b, "%2ds ", sec)
	}
	return b.String()
}

func (s Snapshot) clone() Snapshot {
	dup := s
	if len(s.Log) > 0 {
		dup.Log = make([]LogEntry, len(s.Log))
		copy(dup.Log, s.Log)
	} else {
		dup.Log = nil
	}
	return dup
}
