// Package state holds the published view of a monitoring session and the
// store that shares it between the monitor worker and the shells.
//
// # Overview
//
// The worker goroutine in package monitor is the only writer. It builds a
// complete Snapshot after each processed line and publishes it; shells (the
// Bubble Tea UI, the headless printer, metrics observers) only read.
//
//	Producer (monitor worker):     Consumer (UI):
//	┌────────────────────┐        ┌────────────────────┐
//	│ tail.Next()        │        │                    │
//	│ parse + scan       │        │                    │
//	│      ↓             │        │                    │
//	│ store.Publish()    │───────→│ store.Snapshot()   │
//	│      ↓             │(mutex) │      ↓             │
//	│ tail.Wait()        │        │ render             │
//	└────────────────────┘        └────────────────────┘
//
// # Core Types
//
// Snapshot:
//   - Percent, Estimate (phase, rate, time left, ETA) and Counters
//   - The last N log panel entries (raw lines and diagnostics)
//   - Run metadata: State, RunID, Path, Template, Reason, LastError
//   - Seq, assigned by the Store, strictly increasing across publishes
//
// Store:
//   - sync.RWMutex guarded, zero value ready to use
//   - Publish replaces the snapshot wholesale
//   - Snapshot returns a copy; the log slice is cloned and errors, being
//     immutable, are shared
//   - Updated returns a channel closed on the next publish, for shells that
//     prefer to wait instead of polling
//
// Ring:
//   - Fixed capacity buffer of the most recent items; Entries copies them
//     out oldest first. The worker keeps log history in one and
//     logtail.Read keeps the last lines of a file in another
//
// # Display Helpers
//
// TimeLeftDisplay and ETADisplay render the strings shown in the status
// panel. Before any rate exists both read "Calculating". Remaining time is
// shown as right-aligned hour, minute and second fields with zero fields
// dropped (" 1h  2m  3s "). The ETA uses the session's timestamp template.
//
// # Concurrency Model
//
// The lock is held only while swapping or copying a snapshot, never during
// file I/O or rendering. A reader can never observe a half-written snapshot.
package state
