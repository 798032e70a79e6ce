// Package ui provides the terminal dashboard for progwatch.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model holds everything the screen shows;
// it never reads session internals, only state.Snapshot values copied out of
// the store.
//
//	monitor.Session ──Publish──▶ state.Store ──Updated()──▶ storeUpdatedMsg
//	                                   ▲                          │
//	                                   └──── fetchSnapshotCmd ◀────┘
//
// A second, slower tickMsg refreshes relative times and picks up any publish
// that raced with re-arming the wait.
//
// # Layout
//
//   - Header: program name, run state badge, timestamp template, theme
//   - Status panel: file, progress bar and percent, time left, ETA,
//     anomaly counters, first error line, last control notice
//   - Log panel: viewport over the snapshot's log ring, colored by level
//   - Footer: short key help, line count and last update time
//
// # Control
//
// Start, Stop, Reset and SelectTemplate run as tea.Cmds because Stop and
// Reset wait for the worker goroutine. Their results come back as
// controlMsg and are shown in the status panel.
//
// Theme, template and the last file path are saved to prefs as they change.
package ui
