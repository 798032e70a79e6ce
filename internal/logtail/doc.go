// Package logtail follows log files as they grow.
//
// # Overview
//
// Tail implements "tail -f" semantics for a single file: Open positions the
// reader at the current end of file, so only content appended after Open is
// ever returned. Read is a one-shot helper that returns the last N lines of a
// file and is used to show context before following starts.
//
// # Following
//
// Next is non-blocking. It returns one complete line at a time, or
// ErrPending when nothing new has arrived. Callers pair it with Wait, which
// sleeps until either an fsnotify write event fires for the file or the poll
// interval elapses, whichever comes first, and returns early when the
// context is cancelled:
//
//	tail, err := logtail.Open(path, logtail.Options{Logger: logger})
//	if err != nil {
//		return err // wraps ErrFileNotFound for missing files
//	}
//	defer tail.Close()
//	for {
//		line, err := tail.Next()
//		switch {
//		case errors.Is(err, logtail.ErrPending):
//			if err := tail.Wait(ctx, 200*time.Millisecond); err != nil {
//				return nil // cancelled
//			}
//			continue
//		case err != nil:
//			return err // wraps ErrTailIO
//		}
//		handle(line)
//	}
//
// fsnotify only shortens latency. When a watcher cannot be created the tail
// silently falls back to interval polling, so the cancellation latency is
// always bounded by the interval.
//
// # Partial lines
//
// A writer may leave the last line without a terminator (a final "<<<END>>>"
// marker, for instance). Such a fragment is held back until it has stayed
// unchanged for Options.PartialGrace and is then delivered as a line.
//
// # Failures
//
// Once the followed file is removed, replaced by a different file at the
// same path, or truncated below the read offset, Next returns an error
// wrapping ErrTailIO. The tail does not try to recover; the caller decides
// whether to reopen. Open refuses directories with ErrNotRegular.
//
// # Ring buffer reads
//
// Read scans the file once and keeps the last maxLines in a state.Ring, so
// memory stays O(maxLines) regardless of file size. Lines are split and
// trimmed exactly as Next delivers them and have no length limit. A missing
// file returns nil, nil.
package logtail
