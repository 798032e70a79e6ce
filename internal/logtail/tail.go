package logtail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var (
	// ErrFileNotFound is returned by Open when the path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrTailIO marks a failure of an open tail: read errors, or the file
	// being removed, replaced or truncated underneath it.
	ErrTailIO = errors.New("tail i/o failure")
	// ErrPending means no complete line is available yet.
	ErrPending = errors.New("no new line")
	// ErrNotRegular is returned by Open for directories.
	ErrNotRegular = errors.New("not a regular file")
)

const (
	defaultPartialGrace = 250 * time.Millisecond
	readBufferSize      = 64 * 1024
)

// Options tune a Tail. The zero value is usable.
type Options struct {
	Logger *zap.Logger
	// DisableNotify skips the fsnotify watcher; Wait then only sleeps.
	DisableNotify bool
	// PartialGrace is how long an unterminated trailing fragment must stay
	// unchanged before it is delivered as a line.
	PartialGrace time.Duration
}

// Tail follows a growing file from its end, like "tail -f".
type Tail struct {
	path    string
	file    *os.File
	info    os.FileInfo
	reader  *bufio.Reader
	offset  int64
	partial strings.Builder
	partAt  time.Time
	grace   time.Duration
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// Open positions a new Tail at the current end of path.
func Open(path string, opts Options) (*Tail, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat log: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotRegular, path)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seek log: %w", err)
	}

	grace := opts.PartialGrace
	if grace <= 0 {
		grace = defaultPartialGrace
	}
	t := &Tail{
		path:   path,
		file:   file,
		info:   info,
		reader: bufio.NewReaderSize(file, readBufferSize),
		offset: offset,
		grace:  grace,
		logger: logger,
	}
	if !opts.DisableNotify {
		t.watcher = newWatcher(path, logger)
	}
	return t, nil
}

func newWatcher(path string, logger *zap.Logger) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("fsnotify unavailable, polling only", zap.Error(err))
		return nil
	}
	if err := watcher.Add(path); err != nil {
		logger.Debug("fsnotify watch failed, polling only", zap.String("path", path), zap.Error(err))
		_ = watcher.Close()
		return nil
	}
	return watcher
}

// Path returns the followed file.
func (t *Tail) Path() string {
	return t.path
}

// Next returns the next complete line without its line terminator. It never
// blocks: when nothing new is available it returns ErrPending.
func (t *Tail) Next() (string, error) {
	if t.file == nil {
		return "", fmt.Errorf("%w: tail closed", ErrTailIO)
	}

	chunk, err := t.reader.ReadString('\n')
	t.offset += int64(len(chunk))
	if err == nil {
		return t.takeLine(chunk), nil
	}
	if !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: read %s: %w", ErrTailIO, t.path, err)
	}

	if chunk != "" {
		t.partial.WriteString(chunk)
		t.partAt = time.Now()
		return "", ErrPending
	}
	if err := t.checkFile(); err != nil {
		return "", err
	}
	if t.partial.Len() > 0 && time.Since(t.partAt) >= t.grace {
		return t.takeLine(""), nil
	}
	return "", ErrPending
}

func (t *Tail) takeLine(chunk string) string {
	line := chunk
	if t.partial.Len() > 0 {
		line = t.partial.String() + chunk
		t.partial.Reset()
	}
	return trimEOL(line)
}

// trimEOL drops one trailing "\n" or "\r\n".
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// checkFile detects removal, replacement and truncation of the followed path.
func (t *Tail) checkFile() error {
	current, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s was removed", ErrTailIO, t.path)
		}
		return fmt.Errorf("%w: stat %s: %w", ErrTailIO, t.path, err)
	}
	if !os.SameFile(t.info, current) {
		return fmt.Errorf("%w: %s was replaced", ErrTailIO, t.path)
	}
	if current.Size() < t.offset {
		return fmt.Errorf("%w: %s was truncated", ErrTailIO, t.path)
	}
	return nil
}

// Wait blocks until the file changes, interval elapses or ctx is done. Only
// the ctx error is returned.
func (t *Tail) Wait(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if t.watcher != nil {
		events = t.watcher.Events
		errs = t.watcher.Errors
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case _, ok := <-events:
		if !ok {
			t.watcher = nil
		}
	case err, ok := <-errs:
		if !ok {
			t.watcher = nil
			break
		}
		t.logger.Debug("fsnotify error", zap.String("path", t.path), zap.Error(err))
	}
	return nil
}

// Close releases the file and the watcher. It is safe to call more than once.
func (t *Tail) Close() error {
	var errs []error
	if t.watcher != nil {
		errs = append(errs, t.watcher.Close())
		t.watcher = nil
	}
	if t.file != nil {
		errs = append(errs, t.file.Close())
		t.file = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close tail: %w", err)
	}
	return nil
}
