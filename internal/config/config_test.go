package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/progwatch/internal/lineparse"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load = %#v, want %#v", cfg, Default())
	}
}

func TestLoad_DefaultPathUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "progwatch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("history_lines = 42\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HistoryLines != 42 {
		t.Fatalf("HistoryLines = %d, want 42", cfg.HistoryLines)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
poll_interval_ms = 100
stop_timeout_ms = 500
timestamp_template = "  TYPE3  "
history_lines = 50
log_file = "  ~/logs/progwatch.log  "
metrics_textfile = "~/metrics/progwatch.prom"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 100ms", cfg.PollInterval)
	}
	if cfg.StopTimeout != 500*time.Millisecond {
		t.Fatalf("StopTimeout = %v, want 500ms", cfg.StopTimeout)
	}
	if cfg.Template != lineparse.TemplateTimeOnly {
		t.Fatalf("Template = %v, want %v", cfg.Template, lineparse.TemplateTimeOnly)
	}
	if cfg.HistoryLines != 50 {
		t.Fatalf("HistoryLines = %d, want 50", cfg.HistoryLines)
	}
	if cfg.LogFile != filepath.Join(home, "logs", "progwatch.log") {
		t.Fatalf("LogFile = %q, want it under HOME %q", cfg.LogFile, home)
	}
	if !strings.HasPrefix(cfg.MetricsTextfile, home) {
		t.Fatalf("MetricsTextfile = %q, want it under HOME %q", cfg.MetricsTextfile, home)
	}
}

func TestLoad_TemplatePatternAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`timestamp_template = "YYYY/MM/DD HH:MM:SS.ffffff"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Template != lineparse.TemplateDateSlash {
		t.Fatalf("Template = %v, want %v", cfg.Template, lineparse.TemplateDateSlash)
	}
}

func TestLoad_UnknownTemplateFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`timestamp_template = "iso8601"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "timestamp_template") {
		t.Fatalf("Load error = %v, want it to mention timestamp_template", err)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
poll_interval_ms = 0
timestamp_template = "   "
log_file = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load = %#v, want %#v", cfg, Default())
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`poll_interval_ms = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestClampPollInterval(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, defaultPollInterval},
		{-time.Second, defaultPollInterval},
		{time.Millisecond, minPollInterval},
		{150 * time.Millisecond, 150 * time.Millisecond},
		{5 * time.Second, maxPollInterval},
	}
	for _, tt := range tests {
		if got := ClampPollInterval(tt.in); got != tt.want {
			t.Fatalf("ClampPollInterval(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/a/b")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("ExpandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
