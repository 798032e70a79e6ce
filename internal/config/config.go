package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/progwatch/internal/lineparse"
)

// Config holds the runtime settings for progwatch.
type Config struct {
	PollInterval    time.Duration
	StopTimeout     time.Duration
	Template        lineparse.Template
	HistoryLines    int
	LogFile         string // empty disables file logging
	MetricsTextfile string // empty disables the textfile export
}

const (
	defaultConfigPath   = "~/.config/progwatch/config.toml"
	defaultPollInterval = 200 * time.Millisecond
	minPollInterval     = 20 * time.Millisecond
	maxPollInterval     = time.Second
	defaultStopTimeout  = 2 * time.Second
	defaultHistoryLines = 200
)

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		PollInterval: defaultPollInterval,
		StopTimeout:  defaultStopTimeout,
		Template:     lineparse.DefaultTemplate,
		HistoryLines: defaultHistoryLines,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		PollIntervalMS  int64  `toml:"poll_interval_ms"`
		StopTimeoutMS   int64  `toml:"stop_timeout_ms"`
		Template        string `toml:"timestamp_template"`
		HistoryLines    int    `toml:"history_lines"`
		LogFile         string `toml:"log_file"`
		MetricsTextfile string `toml:"metrics_textfile"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.PollIntervalMS > 0 {
		cfg.PollInterval = ClampPollInterval(time.Duration(raw.PollIntervalMS) * time.Millisecond)
	}
	if raw.StopTimeoutMS > 0 {
		cfg.StopTimeout = time.Duration(raw.StopTimeoutMS) * time.Millisecond
	}
	if strings.TrimSpace(raw.Template) != "" {
		tmpl, err := lineparse.ParseTemplate(raw.Template)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: timestamp_template: %w", err)
		}
		cfg.Template = tmpl
	}
	if raw.HistoryLines > 0 {
		cfg.HistoryLines = raw.HistoryLines
	}
	if strings.TrimSpace(raw.LogFile) != "" {
		cfg.LogFile = mustExpand(raw.LogFile)
	}
	if strings.TrimSpace(raw.MetricsTextfile) != "" {
		cfg.MetricsTextfile = mustExpand(raw.MetricsTextfile)
	}

	return cfg, nil
}

// ClampPollInterval keeps d inside the range that bounds stop latency
// without spinning.
func ClampPollInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return defaultPollInterval
	case d < minPollInterval:
		return minPollInterval
	case d > maxPollInterval:
		return maxPollInterval
	default:
		return d
	}
}

// ExpandPath resolves a leading tilde and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
