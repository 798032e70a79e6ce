package ui

import (
	"path/filepath"
	"strings"
)

// truncate shortens a string to the given limit, adding ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// truncatePath shortens a file path to limit runes. The file name is kept
// whole when it fits and the directory is cut from the left.
func truncatePath(path string, limit int) string {
	path = strings.TrimSpace(path)
	runes := []rune(path)
	if limit <= 0 || len(runes) <= limit {
		return path
	}

	const ellipsis = "…"
	base := []rune(filepath.Base(path))
	if len(base)+2 > limit {
		// Not even the file name fits; keep its tail.
		if limit <= 1 {
			return string(base[len(base)-limit:])
		}
		return ellipsis + string(base[len(base)-(limit-1):])
	}
	keep := limit - 1
	return ellipsis + string(runes[len(runes)-keep:])
}

// padRight pads a string with spaces to the given width.
func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(r))
}
