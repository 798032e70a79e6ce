package lineparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extraction failures. Callers recover from all of them with a fallback value.
var (
	ErrTimestampNotFound       = errors.New("timestamp not found")
	ErrTimestampFormatMismatch = errors.New("timestamp does not match template")
	ErrPercentNotFound         = errors.New("percentage not found")
	ErrPercentOutOfRange       = errors.New("percentage out of range")
)

var (
	timestampPattern = regexp.MustCompile(`\[([\d:./\s_-]+)\]`)
	percentPattern   = regexp.MustCompile(`(-?)(\d+(?:\.\d+)?)%`)
)

// ExtractTimestamp parses the first bracketed timestamp in line using t.
func ExtractTimestamp(line string, t Template) (time.Time, error) {
	match := timestampPattern.FindStringSubmatch(line)
	if match == nil {
		return time.Time{}, ErrTimestampNotFound
	}
	raw := strings.TrimSpace(match[1])
	ts, err := t.parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q as %s", ErrTimestampFormatMismatch, raw, t)
	}
	return ts, nil
}

// ExtractPercent returns the first "<number>%" token as a fraction in [0,1].
// Values above 100% are rejected rather than clamped.
func ExtractPercent(line string) (float64, error) {
	loc := percentPattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return 0, ErrPercentNotFound
	}
	raw := line[loc[4]:loc[5]]
	// A minus sign glued to a preceding digit is a range ("10-20%"), not a sign.
	if loc[3] > loc[2] && (loc[2] == 0 || !isDigit(line[loc[2]-1])) {
		raw = "-" + raw
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPercentNotFound, raw)
	}
	fraction := value / 100
	if fraction < 0 || fraction > 1 {
		return 0, fmt.Errorf("%w: %s%%", ErrPercentOutOfRange, raw)
	}
	return fraction, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
