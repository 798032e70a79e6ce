// Package config loads progwatch's runtime configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/progwatch/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but a field is missing or zero, keep its default
//
// # Default Values
//
//   - poll_interval_ms: 200 (clamped to 20..1000 so Stop stays sub-second)
//   - stop_timeout_ms: 2000
//   - timestamp_template: type1 ("YYYY-MM-DD HH:MM:SS.ffffff")
//   - history_lines: 200
//   - log_file: empty, no file logging
//   - metrics_textfile: empty, no Prometheus textfile export
//
// # TOML Format
//
//	poll_interval_ms = 100
//	timestamp_template = "type3"
//	history_lines = 500
//	log_file = "~/.local/state/progwatch/progwatch.log"
//	metrics_textfile = "/var/lib/node_exporter/progwatch.prom"
//
// timestamp_template accepts either the short name (type1, type2, type3) or
// the full pattern. An unknown template is a parse error rather than a
// silent fallback.
//
// # Path Expansion
//
// Tilde paths are expanded to the home directory and relative paths are made
// absolute, for the config file location as well as log_file and
// metrics_textfile.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than a
// missing file, TOML syntax errors and unknown templates. A missing config
// file is not an error.
package config
