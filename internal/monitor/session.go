package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/lineparse"
	"github.com/five82/progwatch/internal/logtail"
	"github.com/five82/progwatch/internal/state"
)

var (
	// ErrInvalidStart is returned by Start when the session is already
	// running or the path is empty or missing. The session is left unchanged.
	ErrInvalidStart = errors.New("invalid start request")
	// ErrStopTimeout is returned when the worker did not exit within
	// Options.StopTimeout. The run is fenced off regardless.
	ErrStopTimeout = errors.New("monitor worker did not stop in time")
)

// State aliases the lifecycle states published in snapshots.
type State = state.RunState

const (
	Idle    = state.Idle
	Running = state.Running
	Stopped = state.Stopped
)

// Reasons recorded in Snapshot.Reason when a run ends.
const (
	ReasonStopped     = "stopped"
	ReasonEndMarker   = "end marker"
	ReasonTailFailure = "tail failure"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	defaultStopTimeout  = 2 * time.Second
	defaultHistoryLines = 200
)

// Clock supplies wall-clock time for fallbacks and log entries.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Observer receives every published snapshot, one call at a time and in Seq
// order, whichever goroutine published it. A snapshot may be delivered by a
// goroutine other than its publisher, after the publishing call returned.
type Observer interface {
	ObserveSnapshot(state.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(state.Snapshot)

// ObserveSnapshot calls f(snap).
func (f ObserverFunc) ObserveSnapshot(snap state.Snapshot) { f(snap) }

// Options configure a Session. Zero values select defaults.
type Options struct {
	PollInterval  time.Duration
	StopTimeout   time.Duration
	Template      lineparse.Template
	HistoryLines  int
	PartialGrace  time.Duration // see logtail.Options
	DisableNotify bool
	Clock         Clock
	Logger        *zap.Logger
	Observers     []Observer
}

// Session drives one monitored file at a time and publishes its progress
// into a state.Store.
type Session struct {
	store     *state.Store
	opts      Options
	clock     Clock
	logger    *zap.Logger
	observers []Observer

	template   atomic.Int64
	generation atomic.Uint64

	ctrl sync.Mutex // serializes Start, Stop and Reset
	run  *run

	mu      sync.Mutex // guards the fields below; never held across I/O waits
	state   State
	tracker *tracker
	runID   string
	path    string
	reason  string
	lastErr error

	pending     []state.Snapshot // published, not yet delivered to observers
	dispatching bool
}

type run struct {
	id     string
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	fenced bool // guarded by Session.mu; once set the run may not publish
}

// New creates an idle session publishing into store. A nil store gets a
// fresh one.
func New(store *state.Store, opts Options) *Session {
	if store == nil {
		store = &state.Store{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.HistoryLines <= 0 {
		opts.HistoryLines = defaultHistoryLines
	}
	if !opts.Template.Valid() {
		opts.Template = lineparse.DefaultTemplate
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		store:     store,
		opts:      opts,
		clock:     clock,
		logger:    logger,
		observers: append([]Observer(nil), opts.Observers...),
		tracker:   newTracker(opts.HistoryLines),
	}
	s.template.Store(int64(opts.Template))
	s.mu.Lock()
	s.unlockAndNotify(store.Publish(s.initialSnapshot()))
	return s
}

// Store returns the store snapshots are published into.
func (s *Session) Store() *state.Store {
	return s.store
}

// Snapshot is shorthand for Store().Snapshot().
func (s *Session) Snapshot() state.Snapshot {
	return s.store.Snapshot()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Template returns the active timestamp template.
func (s *Session) Template() lineparse.Template {
	return lineparse.Template(s.template.Load())
}

// Start begins tailing path from its current end in a new worker goroutine.
func (s *Session) Start(path string) error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	if s.State() == Running {
		return fmt.Errorf("%w: already monitoring %s", ErrInvalidStart, s.run.path)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: please select a file", ErrInvalidStart)
	}
	tail, err := logtail.Open(path, logtail.Options{
		Logger:        s.logger,
		DisableNotify: s.opts.DisableNotify,
		PartialGrace:  s.opts.PartialGrace,
	})
	if err != nil {
		s.logger.Warn("start rejected", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInvalidStart, err)
	}

	if s.run != nil {
		// The previous run ended on its own and is already fenced.
		s.run.cancel()
		s.run = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.NewString(),
		path:   path,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.state = Running
	s.runID = r.id
	s.path = path
	s.reason = ""
	s.lastErr = nil
	s.tracker.lines = 0
	s.tracker.add(s.clock.Now(), state.LevelInfo, "Monitoring file "+path)
	s.unlockAndNotify(s.publishLocked())

	s.run = r
	s.logger.Info("monitoring started",
		zap.String("run_id", r.id),
		zap.String("path", path),
		zap.String("template", s.Template().Short()),
	)
	go s.work(ctx, r, tail)
	return nil
}

// Stop cancels the running worker and waits for it to close the file. It is
// a no-op when nothing is running. No snapshot of the stopped run is
// published after Stop returns, even when it reports ErrStopTimeout.
func (s *Session) Stop() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	r := s.run
	if r == nil {
		return nil
	}
	s.run = nil
	r.cancel()

	var err error
	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
		err = fmt.Errorf("%w: run %s after %s", ErrStopTimeout, r.id, s.opts.StopTimeout)
		s.logger.Warn("monitor worker still busy after stop", zap.String("run_id", r.id))
	}

	s.mu.Lock()
	if r.fenced {
		s.mu.Unlock()
		return err
	}
	r.fenced = true
	s.state = Stopped
	s.reason = ReasonStopped
	s.unlockAndNotify(s.publishLocked())

	s.logger.Info("monitoring stopped", zap.String("run_id", r.id))
	return err
}

// Reset stops any run and clears the estimator, counters and log so the
// store holds the initial snapshot again. The template is kept.
func (s *Session) Reset() error {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	err := s.stopLocked()

	s.mu.Lock()
	s.state = Idle
	s.tracker = newTracker(s.opts.HistoryLines)
	s.runID = ""
	s.path = ""
	s.reason = ""
	s.lastErr = nil
	s.unlockAndNotify(s.store.Publish(s.initialSnapshot()))

	s.logger.Info("monitoring reset")
	return err
}

// SelectTemplate switches the timestamp layout. The change takes effect
// before the next line and forces the rate estimate to seed again.
func (s *Session) SelectTemplate(t lineparse.Template) error {
	if !t.Valid() {
		return fmt.Errorf("select template: unsupported template %d", int(t))
	}
	s.mu.Lock()
	s.template.Store(int64(t))
	s.generation.Add(1)
	s.unlockAndNotify(s.publishLocked())

	s.logger.Info("timestamp template changed", zap.String("template", t.Short()))
	return nil
}

func (s *Session) initialSnapshot() state.Snapshot {
	snap := state.Initial(s.Template())
	snap.UpdatedAt = s.clock.Now()
	return snap
}

// publishLocked builds a snapshot from the tracker and stores it. s.mu must
// be held.
func (s *Session) publishLocked() state.Snapshot {
	tr := s.tracker
	return s.store.Publish(state.Snapshot{
		State:      s.state,
		RunID:      s.runID,
		Path:       s.path,
		Template:   s.Template(),
		Percent:    tr.percent,
		HasPercent: tr.hasPercent,
		Estimate:   tr.estimator.Current(),
		Counters:   tr.counters,
		Lines:      tr.lines,
		Log:        tr.log.Entries(),
		Reason:     s.reason,
		LastError:  s.lastErr,
		UpdatedAt:  s.clock.Now(),
	})
}

// unlockAndNotify queues snap for the observers and releases s.mu. snap is
// queued under the lock that assigned its Seq, so the queue is in Seq order.
// If another goroutine is already delivering, it picks snap up; otherwise
// the caller drains the queue itself before returning.
func (s *Session) unlockAndNotify(snap state.Snapshot) {
	if len(s.observers) == 0 {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, snap)
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, queued := range batch {
			for _, o := range s.observers {
				o.ObserveSnapshot(queued)
			}
		}
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}
