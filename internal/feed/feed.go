// Package feed writes synthetic progress logs for trying progwatch out.
//
// A run writes "<<<BEGIN>>>", then Count lines of the form
// "[<timestamp>] <pct>%" with occasional error, warning and NaN noise, and
// finally "<<<END>>>" without a trailing newline. Timestamps use the chosen
// template truncated to milliseconds.
package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/lineparse"
)

const (
	BeginMarker = "<<<BEGIN>>>"
	EndMarker   = "<<<END>>>"

	defaultCount    = 100
	defaultInterval = 500 * time.Millisecond
	minSleep        = 10 * time.Millisecond
)

// Options configure a Writer. Zero values select defaults.
type Options struct {
	Template lineparse.Template
	Count    int
	Interval time.Duration // mean pause between lines
	Jitter   time.Duration // standard deviation of the pause
	Seed     uint64        // zero picks a random seed
	Logger   *zap.Logger

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Writer produces synthetic progress logs.
type Writer struct {
	opts   Options
	rng    *rand.Rand
	logger *zap.Logger
}

// New returns a Writer for opts.
func New(opts Options) *Writer {
	if !opts.Template.Valid() {
		opts.Template = lineparse.DefaultTemplate
	}
	if opts.Count <= 0 {
		opts.Count = defaultCount
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		opts:   opts,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}
}

// Line returns the entry for step i (zero based) out of Count.
func (w *Writer) Line(i int) string {
	pct := float64(i+1) / float64(w.opts.Count)
	roll := w.rng.Float64()
	switch {
	case roll < 0.03:
		return w.progressLine(pct, " an error occurred.")
	case roll < 0.06:
		return w.progressLine(pct, " a warning occurred.")
	case roll < 0.10:
		return " an error occurred."
	case roll < 0.13:
		return " an NaN occurred."
	case roll < 0.15:
		return " a warning occurred."
	default:
		return w.progressLine(pct, "")
	}
}

func (w *Writer) progressLine(pct float64, msg string) string {
	stamp := w.opts.Template.Format(w.opts.Now())
	stamp = stamp[:len(stamp)-3] // milliseconds
	if msg == "" {
		return fmt.Sprintf("[%s] %.2f%%", stamp, pct*100)
	}
	return fmt.Sprintf("[%s] %.2f%% %s", stamp, pct*100, msg)
}

// Write emits one complete run to out, flushing after every line so a tail
// sees it immediately.
func (w *Writer) Write(ctx context.Context, out io.Writer) error {
	bw := bufio.NewWriter(out)
	emit := func(s string) error {
		if _, err := bw.WriteString(s); err != nil {
			return fmt.Errorf("write feed: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush feed: %w", err)
		}
		return nil
	}

	if err := emit(BeginMarker + "\n"); err != nil {
		return err
	}
	for i := 0; i < w.opts.Count; i++ {
		if err := emit(w.Line(i) + "\n"); err != nil {
			return err
		}
		if err := w.opts.Sleep(ctx, w.pause()); err != nil {
			return err
		}
	}
	return emit(EndMarker)
}

// WriteFile truncates path and writes one run into it.
func (w *Writer) WriteFile(ctx context.Context, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create feed file: %w", err)
	}
	w.logger.Info("writing synthetic progress log",
		zap.String("path", path),
		zap.String("template", w.opts.Template.Short()),
		zap.Int("count", w.opts.Count),
	)
	if err := w.Write(ctx, file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close feed file: %w", err)
	}
	return nil
}

// Loop rewrites path run after run until ctx is done.
func (w *Writer) Loop(ctx context.Context, path string) error {
	for run := 1; ; run++ {
		w.logger.Info("starting feed loop", zap.Int("loop", run))
		if err := w.WriteFile(ctx, path); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (w *Writer) pause() time.Duration {
	d := time.Duration(float64(w.opts.Interval) + w.rng.NormFloat64()*float64(w.opts.Jitter))
	if d < minSleep {
		d = minSleep
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
