// Package monitor runs the live progress monitoring session.
//
// A Session owns at most one worker goroutine. The worker tails the file
// from the end position fixed by Start and handles each appended line in
// file order:
//
//  1. copy the raw line into the log ring
//  2. extract the bracketed timestamp (falling back to the wall clock)
//  3. extract the percentage (falling back to the last known value)
//  4. feed the rate estimator
//  5. scan for ERROR, NAN/INF, WARNING and END/FINISH keywords
//  6. publish a complete snapshot and notify observers
//
// Parse failures are recorded as warning entries and never end a run. A
// terminal keyword ends the run gracefully; a tail failure (the file was
// removed, replaced or truncated, or a read failed) ends it with LastError
// set. Either way the session moves to Stopped and can be started again.
//
// Observers receive every snapshot in Seq order, including those published
// by Stop, Reset and SelectTemplate from other goroutines.
//
// # Lifecycle
//
//	         Start                 end marker / tail failure / Stop
//	Idle ───────────→ Running ──────────────────────────────────→ Stopped
//	  ↑                  │                                           │
//	  └──── Reset ───────┴─────────────── Reset ─────────────────────┘
//
// Stop cancels the worker and waits up to Options.StopTimeout for it to close
// the file. The run is fenced under the session mutex before Stop returns, so
// the store never changes on behalf of that run afterwards. Reset stops and
// then clears the estimator, counters and log, publishing the initial
// snapshot.
//
// # Template Changes
//
// SelectTemplate swaps the template atomically and bumps a generation
// counter. The worker compares generations before each line and reseeds the
// estimator when they differ, so a line is always parsed with exactly one
// template.
package monitor
