package feed

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/progwatch/internal/anomaly"
	"github.com/five82/progwatch/internal/lineparse"
)

var fixed = time.Date(2024, 7, 26, 17, 56, 56, 532123456, time.Local)

func testWriter(opts Options, pauses *[]time.Duration) *Writer {
	opts.Now = func() time.Time { return fixed }
	opts.Sleep = func(_ context.Context, d time.Duration) error {
		if pauses != nil {
			*pauses = append(*pauses, d)
		}
		return nil
	}
	return New(opts)
}

func TestWrite_Framing(t *testing.T) {
	var buf bytes.Buffer
	w := testWriter(Options{Count: 20, Seed: 7}, nil)
	if err := w.Write(context.Background(), &buf); err != nil {
		t.Fatalf("Write error = %v", err)
	}

	out := buf.String()
	if strings.HasSuffix(out, "\n") {
		t.Fatalf("output should end without a newline after the end marker")
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 22 {
		t.Fatalf("lines = %d, want 22", len(lines))
	}
	if lines[0] != BeginMarker {
		t.Fatalf("first line = %q, want %q", lines[0], BeginMarker)
	}
	if lines[len(lines)-1] != EndMarker {
		t.Fatalf("last line = %q, want %q", lines[len(lines)-1], EndMarker)
	}
	if !anomaly.Scan(EndMarker).Terminal {
		t.Fatalf("end marker must be terminal")
	}
	if anomaly.Scan(BeginMarker).Any() {
		t.Fatalf("begin marker must not trigger any keyword")
	}
}

func TestLine_ProgressLinesParse(t *testing.T) {
	for _, tmpl := range lineparse.Templates() {
		t.Run(tmpl.Short(), func(t *testing.T) {
			w := testWriter(Options{Template: tmpl, Count: 200, Seed: 11}, nil)
			seen := 0
			for i := 0; i < 200; i++ {
				line := w.Line(i)
				if !strings.HasPrefix(line, "[") {
					continue
				}
				seen++
				pct, err := lineparse.ExtractPercent(line)
				if err != nil {
					t.Fatalf("ExtractPercent(%q) error = %v", line, err)
				}
				want := float64(i+1) / 200
				if diff := pct - want; diff > 0.00005 || diff < -0.00005 {
					t.Fatalf("ExtractPercent(%q) = %v, want %v", line, pct, want)
				}
				ts, err := lineparse.ExtractTimestamp(line, tmpl)
				if err != nil {
					t.Fatalf("ExtractTimestamp(%q) error = %v", line, err)
				}
				if ts.Hour() != 17 || ts.Minute() != 56 || ts.Second() != 56 || ts.Nanosecond() != 532000000 {
					t.Fatalf("timestamp = %v, want 17:56:56.532", ts)
				}
			}
			if seen == 0 {
				t.Fatalf("no progress lines generated")
			}
		})
	}
}

func TestLine_NoiseRatio(t *testing.T) {
	w := testWriter(Options{Count: 2000, Seed: 3}, nil)
	noise := 0
	for i := 0; i < 2000; i++ {
		if anomaly.Scan(w.Line(i)).Any() {
			noise++
		}
	}
	ratio := float64(noise) / 2000
	if ratio < 0.08 || ratio > 0.25 {
		t.Fatalf("noise ratio = %.3f, want roughly 0.15", ratio)
	}
}

func TestWrite_DeterministicWithSeed(t *testing.T) {
	var a, b bytes.Buffer
	if err := testWriter(Options{Count: 50, Seed: 99}, nil).Write(context.Background(), &a); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if err := testWriter(Options{Count: 50, Seed: 99}, nil).Write(context.Background(), &b); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("same seed produced different output")
	}
}

func TestWrite_PauseFloor(t *testing.T) {
	var pauses []time.Duration
	w := testWriter(Options{Count: 10, Interval: time.Millisecond, Jitter: time.Millisecond, Seed: 5}, &pauses)
	if err := w.Write(context.Background(), &bytes.Buffer{}); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if len(pauses) != 10 {
		t.Fatalf("pauses = %d, want 10", len(pauses))
	}
	for _, d := range pauses {
		if d < minSleep {
			t.Fatalf("pause = %v, want >= %v", d, minSleep)
		}
	}
}

func TestWrite_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := New(Options{Count: 10, Seed: 1})

	var buf bytes.Buffer
	err := w.Write(ctx, &buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Write error = %v, want context.Canceled", err)
	}
	if strings.Contains(buf.String(), EndMarker) {
		t.Fatalf("cancelled run should not write the end marker")
	}
}

func TestWriteFile_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("old\n", 100)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w := testWriter(Options{Count: 3, Seed: 2}, nil)
	if err := w.WriteFile(context.Background(), path); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "old") {
		t.Fatalf("previous content not truncated: %q", data)
	}
	if !strings.HasPrefix(string(data), BeginMarker) {
		t.Fatalf("file should start with %q: %q", BeginMarker, data)
	}
}
