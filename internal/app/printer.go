package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/logtail"
	"github.com/five82/progwatch/internal/monitor"
	"github.com/five82/progwatch/internal/state"
)

const exportInterval = 5 * time.Second

var errNoFile = errors.New("headless mode needs -file")

type headlessOptions struct {
	path    string
	preview int
	out     io.Writer
	logger  *zap.Logger
}

// runHeadless monitors one file and prints a status line whenever the
// session publishes. It returns when the run ends or ctx is cancelled.
func runHeadless(ctx context.Context, session *monitor.Session, opts headlessOptions) error {
	path := strings.TrimSpace(opts.path)
	if path == "" {
		return errNoFile
	}

	if opts.preview > 0 {
		lines, err := logtail.Read(path, opts.preview)
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		for _, line := range lines {
			fmt.Fprintf(opts.out, "| %s\n", line)
		}
	}

	if err := session.Start(path); err != nil {
		return fmt.Errorf("start monitoring: %w", err)
	}

	final, err := followStore(ctx, session.Store(), opts.out)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			opts.logger.Info("headless run interrupted")
			return nil
		}
		return err
	}
	if final.Reason == monitor.ReasonTailFailure && final.LastError != nil {
		return fmt.Errorf("monitor %s: %w", path, final.LastError)
	}
	return nil
}

// followStore prints every snapshot it observes until one reports a
// stopped run. Bursts of publishes between two wake-ups print once.
func followStore(ctx context.Context, store *state.Store, out io.Writer) (state.Snapshot, error) {
	var last uint64
	for {
		changed := store.Updated()
		snap := store.Snapshot()
		if snap.Seq != last {
			last = snap.Seq
			fmt.Fprintln(out, formatStatus(snap))
			if snap.State == state.Stopped {
				return snap, nil
			}
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// formatStatus renders one headless status line.
func formatStatus(snap state.Snapshot) string {
	var b strings.Builder
	b.WriteString(snap.UpdatedAt.Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-7s", snap.State.String()))

	if pct := snap.PercentDisplay(); pct != "" {
		b.WriteString("  " + pct)
	}
	if left := strings.TrimSpace(snap.TimeLeftDisplay()); left != "" {
		b.WriteString("  left " + left)
	}
	if eta := snap.ETADisplay(); eta != "" && eta != "Calculating" {
		b.WriteString("  eta " + eta)
	}
	fmt.Fprintf(&b, "  errors %s  warnings %s  lines %s",
		humanize.Comma(int64(snap.Counters.Errors)),
		humanize.Comma(int64(snap.Counters.Warnings)),
		humanize.Comma(int64(snap.Lines)),
	)
	if snap.State == state.Stopped && snap.Reason != "" {
		b.WriteString("  (" + snap.Reason + ")")
	}
	return b.String()
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
