// Package lineparse extracts progress telemetry from free-form log lines.
//
// Two conventions are recognised:
//
//   - a timestamp wrapped in square brackets, e.g. "[2024-07-26 17:56:56.532]"
//   - a completion percentage written as "<number>%", e.g. "40.00%"
//
// Both extractors are pure functions. They return sentinel errors
// (ErrTimestampNotFound, ErrTimestampFormatMismatch, ErrPercentNotFound,
// ErrPercentOutOfRange) so the caller can substitute a fallback and keep
// going; a malformed line never ends a monitoring run.
//
// Timestamps are interpreted with one of a fixed set of templates, selected
// by the user:
//
//	TemplateDateDash   YYYY-MM-DD HH:MM:SS.ffffff
//	TemplateDateSlash  YYYY/MM/DD HH:MM:SS.ffffff
//	TemplateTimeOnly   HH:MM:SS.ffffff
//
// The fractional part may carry one to six digits. Timestamps are read in the
// local time zone, matching the wall clock used as a fallback.
package lineparse
