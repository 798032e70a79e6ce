// Package estimate turns (percent, timestamp) samples into a smoothed
// completion rate, a remaining-time projection and an ETA.
//
// The rate is an exponential moving average of the instantaneous rate
// between consecutive samples. Samples that do not move forward in both time
// and progress only replace the reference sample; the last projection is kept
// as-is so a display keeps showing it.
package estimate

import (
	"math"
	"time"
)

// Alpha is the weight given to the newest instantaneous rate.
const Alpha = 0.4

// Phase describes how much the estimator knows.
type Phase int

const (
	// PhaseNone means no sample has been seen.
	PhaseNone Phase = iota
	// PhaseCalculating means samples exist but no usable rate yet.
	PhaseCalculating
	// PhaseReady means Rate, TimeLeft and ETA are populated.
	PhaseReady
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseCalculating:
		return "calculating"
	case PhaseReady:
		return "ready"
	default:
		return "none"
	}
}

// Sample is one observation of progress.
type Sample struct {
	At      time.Time
	Percent float64
}

// Estimate is the projection derived from the samples seen so far.
type Estimate struct {
	Phase    Phase
	Rate     float64 // fraction per second
	TimeLeft time.Duration
	ETA      time.Time
}

// Known reports whether the projection fields are meaningful.
func (e Estimate) Known() bool {
	return e.Phase == PhaseReady
}

// Estimator tracks the smoothed rate. The zero value is ready to use. It is
// not safe for concurrent use.
type Estimator struct {
	last    *Sample
	rate    float64
	hasRate bool
	current Estimate
}

// Update feeds a sample and returns the current projection.
func (e *Estimator) Update(percent float64, at time.Time) Estimate {
	sample := Sample{At: at, Percent: percent}
	defer func() { e.last = &sample }()

	if e.last == nil {
		e.current = Estimate{Phase: PhaseCalculating}
		return e.current
	}

	dt := at.Sub(e.last.At).Seconds()
	dp := percent - e.last.Percent
	if dt <= 0 || dp <= 0 {
		return e.current
	}

	instant := dp / dt
	if e.hasRate {
		e.rate = Alpha*instant + (1-Alpha)*e.rate
	} else {
		e.rate = instant
		e.hasRate = true
	}

	if e.rate <= 0 || math.IsNaN(e.rate) || math.IsInf(e.rate, 0) {
		e.current = Estimate{Phase: PhaseCalculating}
		return e.current
	}

	seconds := (1 - percent) / e.rate
	if seconds > maxSeconds {
		e.current = Estimate{Phase: PhaseCalculating, Rate: e.rate}
		return e.current
	}
	left := time.Duration(seconds * float64(time.Second))
	e.current = Estimate{
		Phase:    PhaseReady,
		Rate:     e.rate,
		TimeLeft: left,
		ETA:      at.Add(left),
	}
	return e.current
}

// maxSeconds keeps TimeLeft inside time.Duration's range.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Current returns the last projection without feeding a sample.
func (e *Estimator) Current() Estimate {
	return e.current
}

// Rate returns the smoothed rate and whether it has been seeded.
func (e *Estimator) Rate() (float64, bool) {
	return e.rate, e.hasRate
}

// Last returns the reference sample, if any.
func (e *Estimator) Last() (Sample, bool) {
	if e.last == nil {
		return Sample{}, false
	}
	return *e.last, true
}

// Reset forgets the reference sample and the smoothed rate so the next two
// samples seed the estimate again. The next Update reports PhaseCalculating.
func (e *Estimator) Reset() {
	e.last = nil
	e.rate = 0
	e.hasRate = false
}

// Clear returns the estimator to its zero value.
func (e *Estimator) Clear() {
	*e = Estimator{}
}
