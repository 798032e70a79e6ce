package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/five82/progwatch/internal/estimate"
	"github.com/five82/progwatch/internal/lineparse"
	"github.com/five82/progwatch/internal/logtail"
	"github.com/five82/progwatch/internal/state"
)

func newTestSession(t *testing.T, opts Options) (*Session, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.log")
	require.NoError(t, os.WriteFile(path, []byte("<<<BEGIN>>>\n"), 0o644))
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	opts.DisableNotify = true
	opts.PartialGrace = 20 * time.Millisecond
	s := New(nil, opts)
	t.Cleanup(func() { _ = s.Reset() })
	return s, path
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	for _, line := range lines {
		_, err := f.WriteString(line + "\n")
		require.NoError(t, err)
	}
}

func waitSnapshot(t *testing.T, s *Session, cond func(state.Snapshot) bool) state.Snapshot {
	t.Helper()
	var snap state.Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return cond(snap)
	}, 3*time.Second, 5*time.Millisecond)
	return snap
}

func linesRead(n uint64) func(state.Snapshot) bool {
	return func(snap state.Snapshot) bool { return snap.Lines >= n }
}

func hasEntry(snap state.Snapshot, level state.Level, text string) bool {
	for _, e := range snap.Log {
		if e.Level == level && strings.HasPrefix(e.Text, text) {
			return true
		}
	}
	return false
}

func TestNew_PublishesInitialSnapshot(t *testing.T) {
	store := &state.Store{}
	s := New(store, Options{Template: lineparse.TemplateTimeOnly})

	snap := store.Snapshot()
	require.Equal(t, Idle, s.State())
	require.Equal(t, state.Idle, snap.State)
	require.Equal(t, lineparse.TemplateTimeOnly, snap.Template)
	require.Equal(t, "", snap.TimeLeftDisplay())
	require.Same(t, store, s.Store())
}

func TestStart_InvalidRequests(t *testing.T) {
	s, path := newTestSession(t, Options{})

	err := s.Start("")
	require.ErrorIs(t, err, ErrInvalidStart)

	err = s.Start(filepath.Join(t.TempDir(), "missing.log"))
	require.ErrorIs(t, err, ErrInvalidStart)
	require.ErrorIs(t, err, logtail.ErrFileNotFound)
	require.Equal(t, Idle, s.State())

	err = s.Start(t.TempDir())
	require.ErrorIs(t, err, ErrInvalidStart)
	require.ErrorIs(t, err, logtail.ErrNotRegular)
	require.Equal(t, Idle, s.State())

	require.NoError(t, s.Start(path))
	err = s.Start(path)
	require.ErrorIs(t, err, ErrInvalidStart)
	require.Equal(t, Running, s.State())
}

func TestStart_TailsFromEndOfFile(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	snap := s.Snapshot()
	require.Equal(t, state.Running, snap.State)
	require.Equal(t, path, snap.Path)
	require.NotEmpty(t, snap.RunID)
	require.True(t, hasEntry(snap, state.LevelInfo, "Monitoring file"))

	appendLines(t, path, "[2024-07-26 17:56:56.532] 12.50%")
	snap = waitSnapshot(t, s, linesRead(1))
	require.Equal(t, uint64(1), snap.Lines)
	require.InDelta(t, 0.125, snap.Percent, 1e-9)
	for _, e := range snap.Log {
		require.NotEqual(t, "<<<BEGIN>>>", e.Text, "pre-existing content must not be replayed")
	}
}

func TestSession_ScenarioA(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	appendLines(t, path, "[2024-07-26 17:56:56.532] 40.00%")
	snap := waitSnapshot(t, s, linesRead(1))

	require.InDelta(t, 0.40, snap.Percent, 1e-9)
	require.True(t, snap.HasPercent)
	require.Equal(t, state.Counters{}, snap.Counters)
	require.Equal(t, estimate.PhaseCalculating, snap.Estimate.Phase)
	require.Equal(t, "Calculating", snap.TimeLeftDisplay())
	require.False(t, hasEntry(snap, state.LevelWarning, ""))
}

func TestSession_ScenarioB(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s, path := newTestSession(t, Options{Logger: zap.New(core)})
	require.NoError(t, s.Start(path))

	before := time.Now()
	appendLines(t, path, "progress update with no bracket 55%")
	snap := waitSnapshot(t, s, linesRead(1))

	require.InDelta(t, 0.55, snap.Percent, 1e-9)
	require.True(t, hasEntry(snap, state.LevelWarning, msgTimestampMissing))
	require.Equal(t, 1, logs.FilterMessage("timestamp fallback to wall clock").Len())

	s.mu.Lock()
	last, ok := s.tracker.estimator.Last()
	s.mu.Unlock()
	require.True(t, ok)
	require.False(t, last.At.Before(before), "fallback timestamp should be the wall clock")
}

func TestSession_ScenarioC(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	appendLines(t, path,
		"[2024-07-26 17:00:00.000] 10%",
		"[2024-07-26 17:00:10.000] 20%",
	)
	snap := waitSnapshot(t, s, linesRead(2))

	require.Equal(t, estimate.PhaseReady, snap.Estimate.Phase)
	require.InDelta(t, 0.01, snap.Estimate.Rate, 1e-12)
	require.InDelta(t, 80, snap.Estimate.TimeLeft.Seconds(), 1e-6)
	require.Equal(t, " 1m 20s ", snap.TimeLeftDisplay())
	require.Equal(t, "2024-07-26 17:01:30.000000", snap.ETADisplay())
}

func TestSession_ScenarioD(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	appendLines(t, path, "[2024-07-26 17:00:00.000] 10% ERROR: NaN detected")
	snap := waitSnapshot(t, s, linesRead(1))

	require.Equal(t, uint64(2), snap.Counters.Errors)
	require.Equal(t, "[2024-07-26 17:00:00.000] 10% ERROR: NaN detected", snap.Counters.FirstError)
	require.True(t, hasEntry(snap, state.LevelError, msgErrorFound))
	require.True(t, hasEntry(snap, state.LevelError, msgNumericFault))

	appendLines(t, path, "[2024-07-26 17:00:01.000] 11% another error", "[2024-07-26 17:00:02.000] 12% WARNING: slow")
	snap = waitSnapshot(t, s, linesRead(3))
	require.Equal(t, uint64(3), snap.Counters.Errors)
	require.Equal(t, uint64(1), snap.Counters.Warnings)
	require.Equal(t, "[2024-07-26 17:00:00.000] 10% ERROR: NaN detected", snap.Counters.FirstError)
}

func TestSession_ScenarioE(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	appendLines(t, path,
		"[2024-07-26 17:00:00.000] 10%",
		"[2024-07-26 17:00:10.000] 30%",
		"FINISH",
	)
	snap := waitSnapshot(t, s, func(snap state.Snapshot) bool { return snap.State == state.Stopped })

	require.Equal(t, ReasonEndMarker, snap.Reason)
	require.NoError(t, snap.LastError)
	require.InDelta(t, 0.30, snap.Percent, 1e-9)
	require.Equal(t, estimate.PhaseReady, snap.Estimate.Phase)
	require.True(t, hasEntry(snap, state.LevelInfo, msgEndFound))
	require.Equal(t, Stopped, s.State())

	// Lines after the marker are not read.
	appendLines(t, path, "[2024-07-26 17:00:20.000] 90%")
	require.Never(t, func() bool { return s.Snapshot().Lines > 3 }, 100*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(path))
	require.Equal(t, Running, s.State())
}

func TestSession_UnterminatedEndMarker(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("[2024-07-26 17:00:00.000] 100%\n<<<END>>>")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	snap := waitSnapshot(t, s, func(snap state.Snapshot) bool { return snap.State == state.Stopped })
	require.Equal(t, ReasonEndMarker, snap.Reason)
	require.InDelta(t, 1.0, snap.Percent, 1e-9)
}

func TestSession_TailFailureStopsRun(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	require.NoError(t, os.Remove(path))
	snap := waitSnapshot(t, s, func(snap state.Snapshot) bool { return snap.State == state.Stopped })

	require.Equal(t, ReasonTailFailure, snap.Reason)
	require.ErrorIs(t, snap.LastError, logtail.ErrTailIO)
	require.True(t, hasEntry(snap, state.LevelError, msgTailFailure))
	require.NoError(t, s.Stop())
}

func TestStop_Idempotent(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Stop(), "stop before start")

	require.NoError(t, s.Start(path))
	appendLines(t, path, "[2024-07-26 17:00:00.000] 10%")
	waitSnapshot(t, s, linesRead(1))

	require.NoError(t, s.Stop())
	first := s.Snapshot()
	require.Equal(t, state.Stopped, first.State)
	require.Equal(t, ReasonStopped, first.Reason)

	require.NoError(t, s.Stop())
	second := s.Snapshot()
	require.Equal(t, first.Seq, second.Seq)
	require.Equal(t, Stopped, s.State())

	appendLines(t, path, "[2024-07-26 17:00:10.000] 50%")
	require.Never(t, func() bool { return s.Snapshot().Seq != first.Seq }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestStop_TimeoutStillFencesRun(t *testing.T) {
	var (
		blocked = make(chan struct{})
		release = make(chan struct{})
		once    atomic.Bool
	)
	blocker := ObserverFunc(func(snap state.Snapshot) {
		if snap.State == state.Running && snap.Lines > 0 && once.CompareAndSwap(false, true) {
			close(blocked)
			<-release
		}
	})
	s, path := newTestSession(t, Options{StopTimeout: 50 * time.Millisecond, Observers: []Observer{blocker}})
	require.NoError(t, s.Start(path))

	appendLines(t, path, "[2024-07-26 17:00:00.000] 10%")
	select {
	case <-blocked:
	case <-time.After(3 * time.Second):
		t.Fatal("observer never called")
	}

	err := s.Stop()
	require.ErrorIs(t, err, ErrStopTimeout)
	require.Equal(t, Stopped, s.State())
	seq := s.Snapshot().Seq

	appendLines(t, path, "[2024-07-26 17:00:10.000] 50%")
	close(release)
	require.Never(t, func() bool { return s.Snapshot().Seq != seq }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestReset_YieldsInitialSnapshot(t *testing.T) {
	for _, name := range []string{"idle", "running", "stopped"} {
		t.Run(name, func(t *testing.T) {
			s, path := newTestSession(t, Options{Template: lineparse.TemplateDateSlash})
			if name != "idle" {
				require.NoError(t, s.Start(path))
				appendLines(t, path,
					"[2024/07/26 17:00:00.000] 10% ERROR",
					"[2024/07/26 17:00:10.000] 20% WARNING",
				)
				waitSnapshot(t, s, linesRead(2))
			}
			if name == "stopped" {
				require.NoError(t, s.Stop())
			}

			require.NoError(t, s.Reset())
			snap := s.Snapshot()
			snap.Seq = 0
			snap.UpdatedAt = time.Time{}
			require.Equal(t, state.Initial(lineparse.TemplateDateSlash), snap)
			require.Equal(t, Idle, s.State())

			s.mu.Lock()
			_, ok := s.tracker.estimator.Last()
			s.mu.Unlock()
			require.False(t, ok, "estimator should be cleared")
		})
	}
}

func TestSelectTemplate_ReseedsEstimator(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	appendLines(t, path,
		"[2024-07-26 17:00:00.000] 10%",
		"[2024-07-26 17:00:10.000] 20%",
	)
	snap := waitSnapshot(t, s, linesRead(2))
	require.Equal(t, estimate.PhaseReady, snap.Estimate.Phase)

	require.NoError(t, s.SelectTemplate(lineparse.TemplateTimeOnly))
	require.Equal(t, lineparse.TemplateTimeOnly, s.Template())
	require.Equal(t, lineparse.TemplateTimeOnly, s.Snapshot().Template)

	appendLines(t, path, "[17:00:20.000] 30%")
	snap = waitSnapshot(t, s, linesRead(3))
	require.Equal(t, estimate.PhaseCalculating, snap.Estimate.Phase)
	require.False(t, hasEntry(snap, state.LevelWarning, msgTimestampInvalid))

	require.Error(t, s.SelectTemplate(lineparse.Template(42)))
}

func TestSession_MismatchedTemplateWarns(t *testing.T) {
	s, path := newTestSession(t, Options{Template: lineparse.TemplateDateSlash})
	require.NoError(t, s.Start(path))

	appendLines(t, path, "[2024-07-26 17:00:00.000] 10%")
	snap := waitSnapshot(t, s, linesRead(1))
	require.True(t, hasEntry(snap, state.LevelWarning, msgTimestampInvalid))
	require.InDelta(t, 0.10, snap.Percent, 1e-9)
}

func TestSession_PercentFallbackKeepsLastValue(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))

	appendLines(t, path,
		"[2024-07-26 17:00:00.000] 35%",
		"[2024-07-26 17:00:01.000] no progress here",
		"[2024-07-26 17:00:02.000] 150%",
	)
	snap := waitSnapshot(t, s, linesRead(3))
	require.InDelta(t, 0.35, snap.Percent, 1e-9)
	require.True(t, hasEntry(snap, state.LevelWarning, msgPercentMissing))
	require.True(t, hasEntry(snap, state.LevelWarning, msgPercentRange))
}

func TestSession_ObserversSeeOrderedMonotonicSnapshots(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []state.Snapshot
	)
	record := ObserverFunc(func(snap state.Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})
	s, path := newTestSession(t, Options{Observers: []Observer{record}})
	require.NoError(t, s.Start(path))

	lines := []string{
		"[2024-07-26 17:00:00.000] 1% ERROR",
		"[2024-07-26 17:00:01.000] 2%",
		"[2024-07-26 17:00:02.000] 3% WARNING",
		"[2024-07-26 17:00:03.000] 4% nan",
		"[2024-07-26 17:00:04.000] 5%",
		"[2024-07-26 17:00:05.000] 6% error warning",
	}
	appendLines(t, path, lines...)
	waitSnapshot(t, s, linesRead(uint64(len(lines))))
	require.NoError(t, s.Stop())

	mu.Lock()
	defer mu.Unlock()
	var prev state.Snapshot
	for i, snap := range seen {
		if i > 0 {
			require.Greater(t, snap.Seq, prev.Seq)
			require.GreaterOrEqual(t, snap.Counters.Errors, prev.Counters.Errors)
			require.GreaterOrEqual(t, snap.Counters.Warnings, prev.Counters.Warnings)
			require.GreaterOrEqual(t, snap.Lines, prev.Lines)
		}
		prev = snap
	}
	require.Equal(t, uint64(3), prev.Counters.Errors)
	require.Equal(t, uint64(2), prev.Counters.Warnings)
	require.Equal(t, lines[0], prev.Counters.FirstError)
}

func TestSession_ObserversSeeSeqOrderAcrossControlCalls(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []state.Snapshot
	)
	slow := ObserverFunc(func(snap state.Snapshot) {
		if snap.Lines > 0 {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})
	s, path := newTestSession(t, Options{Observers: []Observer{slow}})
	require.NoError(t, s.Start(path))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		appendLines(t, path, fmt.Sprintf("[17:00:%02d.000] %d%% ERROR", i, (i+1)*10))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SelectTemplate(lineparse.TemplateTimeOnly); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	waitSnapshot(t, s, linesRead(5))
	require.NoError(t, s.Stop())
	final := s.Snapshot()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		require.Greater(t, seen[i].Seq, seen[i-1].Seq, "delivery out of publish order")
	}
	last := seen[len(seen)-1]
	require.Equal(t, final.Seq, last.Seq)
	require.Equal(t, uint64(5), last.Counters.Errors)
	require.Equal(t, state.Stopped, last.State)
}

func TestSession_ContinuesAfterRestart(t *testing.T) {
	s, path := newTestSession(t, Options{})
	require.NoError(t, s.Start(path))
	appendLines(t, path, "[2024-07-26 17:00:00.000] 10% ERROR")
	waitSnapshot(t, s, linesRead(1))
	require.NoError(t, s.Stop())

	require.NoError(t, s.Start(path))
	appendLines(t, path, "[2024-07-26 17:00:10.000] 20% ERROR")
	snap := waitSnapshot(t, s, linesRead(1))
	require.Equal(t, uint64(2), snap.Counters.Errors, "counters survive stop and start")
	require.Equal(t, estimate.PhaseReady, snap.Estimate.Phase)
}
