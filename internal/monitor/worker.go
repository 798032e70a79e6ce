package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/anomaly"
	"github.com/five82/progwatch/internal/estimate"
	"github.com/five82/progwatch/internal/lineparse"
	"github.com/five82/progwatch/internal/logtail"
	"github.com/five82/progwatch/internal/state"
)

// Log panel messages.
const (
	msgErrorFound       = "An error was detected"
	msgNumericFault     = "NAN/INF detected as an error"
	msgWarningFound     = "A warning was detected"
	msgEndFound         = "END/FINISH detected as an end of monitoring"
	msgTimestampMissing = "Timestamp matching failed"
	msgTimestampInvalid = "Timestamp parsing failed"
	msgPercentMissing   = "Percentage matching failed"
	msgPercentRange     = "Percentage out of range"
	msgTailFailure      = "Exception occurred while monitoring file"
)

// tracker is the per-session state mutated by the worker under Session.mu.
type tracker struct {
	estimator  estimate.Estimator
	counters   state.Counters
	log        *state.Ring[state.LogEntry]
	percent    float64
	hasPercent bool
	lines      uint64
	generation uint64
}

func newTracker(history int) *tracker {
	return &tracker{log: state.NewRing[state.LogEntry](history)}
}

func (t *tracker) add(at time.Time, level state.Level, text string) {
	t.log.Add(state.LogEntry{At: at, Level: level, Text: text})
}

func (t *tracker) recordError(line string) {
	t.counters.Errors++
	if t.counters.FirstError == "" {
		t.counters.FirstError = line
	}
}

func (s *Session) work(ctx context.Context, r *run, tail *logtail.Tail) {
	defer close(r.done)
	defer func() {
		if err := tail.Close(); err != nil {
			s.logger.Warn("close tail failed", zap.String("run_id", r.id), zap.Error(err))
		}
	}()

	logger := s.logger.With(zap.String("run_id", r.id))
	for {
		if ctx.Err() != nil {
			logger.Debug("worker cancelled")
			return
		}
		line, err := tail.Next()
		if errors.Is(err, logtail.ErrPending) {
			if tail.Wait(ctx, s.opts.PollInterval) != nil {
				logger.Debug("worker cancelled while waiting")
				return
			}
			continue
		}
		if err != nil {
			s.fail(r, err, logger)
			return
		}

		more, ok := s.process(r, line, logger)
		if !ok {
			return
		}
		if !more {
			logger.Info("end marker seen, monitoring finished")
			return
		}
	}
}

// process applies one line to the tracker, publishes the result and notifies
// the observers. ok is false when the run was fenced off by Stop; more is
// false after a terminal marker.
func (s *Session) process(r *run, line string, logger *zap.Logger) (more, ok bool) {
	now := s.clock.Now()

	s.mu.Lock()
	if r.fenced {
		s.mu.Unlock()
		return false, false
	}
	more = s.applyLocked(r, line, now, logger)
	s.unlockAndNotify(s.publishLocked())
	return more, true
}

// applyLocked folds line into the tracker. It returns false after a terminal
// marker, which also ends the run. s.mu must be held.
func (s *Session) applyLocked(r *run, line string, now time.Time, logger *zap.Logger) bool {
	tr := s.tracker
	tmpl := s.Template()
	if gen := s.generation.Load(); gen != tr.generation {
		tr.estimator.Reset()
		tr.generation = gen
	}

	tr.lines++
	tr.add(now, state.LevelLine, line)

	ts, err := lineparse.ExtractTimestamp(line, tmpl)
	if err != nil {
		msg := msgTimestampMissing
		if errors.Is(err, lineparse.ErrTimestampFormatMismatch) {
			msg = msgTimestampInvalid
		}
		tr.add(now, state.LevelWarning, msg)
		logger.Warn("timestamp fallback to wall clock", zap.String("template", tmpl.Short()), zap.Error(err))
		ts = now
	}

	pct, err := lineparse.ExtractPercent(line)
	if err != nil {
		msg := msgPercentMissing
		if errors.Is(err, lineparse.ErrPercentOutOfRange) {
			msg = msgPercentRange
		}
		tr.add(now, state.LevelWarning, msg)
		logger.Warn("percent fallback to last value", zap.Float64("percent", tr.percent), zap.Error(err))
		pct = tr.percent
	} else {
		tr.hasPercent = true
	}
	tr.percent = pct
	tr.estimator.Update(pct, ts)

	hits := anomaly.Scan(line)
	if hits.Error {
		tr.recordError(line)
		tr.add(now, state.LevelError, msgErrorFound)
	}
	if hits.NumericFault {
		tr.recordError(line)
		tr.add(now, state.LevelError, msgNumericFault)
	}
	if hits.Warning {
		tr.counters.Warnings++
		tr.add(now, state.LevelWarning, msgWarningFound)
	}

	if hits.Terminal {
		tr.add(now, state.LevelInfo, msgEndFound)
		r.fenced = true
		s.state = Stopped
		s.reason = ReasonEndMarker
		return false
	}
	return true
}

// fail ends the run after a tail failure.
func (s *Session) fail(r *run, err error, logger *zap.Logger) {
	now := s.clock.Now()

	s.mu.Lock()
	if r.fenced {
		s.mu.Unlock()
		return
	}
	r.fenced = true
	s.tracker.add(now, state.LevelError, msgTailFailure+": "+err.Error())
	s.state = Stopped
	s.reason = ReasonTailFailure
	s.lastErr = err
	s.unlockAndNotify(s.publishLocked())

	logger.Error("monitoring aborted", zap.Error(err))
}
