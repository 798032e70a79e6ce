package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/config"
	"github.com/five82/progwatch/internal/lineparse"
	"github.com/five82/progwatch/internal/logging"
	"github.com/five82/progwatch/internal/metrics"
	"github.com/five82/progwatch/internal/monitor"
	"github.com/five82/progwatch/internal/prefs"
	"github.com/five82/progwatch/internal/state"
	"github.com/five82/progwatch/internal/ui"
)

// Options configure the progwatch application. Zero values defer to the
// config file, then to built-in defaults.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/progwatch/prefs.toml
	File       string // log file to monitor
	Template   string // short name or layout pattern
	PollMillis int
	Headless   bool
	Preview    int // headless: print the last N lines before tailing
	LogFile    string
	Debug      bool

	Out io.Writer // headless status output; nil uses stdout
}

// Run boots progwatch until the context is cancelled, the user quits the
// TUI, or a headless run ends.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(&cfg, opts); err != nil {
		return err
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return fmt.Errorf("load prefs: %w", err)
	}
	tmpl, err := resolveTemplate(opts.Template, userPrefs, cfg.Template)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Path:   cfg.LogFile,
		Stderr: opts.Headless && opts.Debug,
		Debug:  opts.Debug,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return err
	}

	session := monitor.New(&state.Store{}, monitor.Options{
		PollInterval: cfg.PollInterval,
		StopTimeout:  cfg.StopTimeout,
		Template:     tmpl,
		HistoryLines: cfg.HistoryLines,
		Logger:       logger,
		Observers:    []monitor.Observer{collector},
	})

	exportCtx, stopExport := context.WithCancel(context.Background())
	var exported <-chan struct{}
	if cfg.MetricsTextfile != "" {
		exported = metrics.StartExporter(exportCtx, cfg.MetricsTextfile, reg, exportInterval, logger)
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Warn("stop on exit", zap.Error(err))
		}
		stopExport()
		if exported != nil {
			<-exported
		}
	}()

	logger.Info("progwatch starting",
		zap.Bool("headless", opts.Headless),
		zap.String("template", tmpl.Short()),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	if opts.Headless {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		return runHeadless(ctx, session, headlessOptions{
			path:    opts.File,
			preview: opts.Preview,
			out:     out,
			logger:  logger,
		})
	}

	return ui.Run(ui.Options{
		Context:     ctx,
		Session:     session,
		Prefs:       userPrefs,
		PrefsPath:   opts.PrefsPath,
		InitialPath: opts.File,
		Logger:      logger,
	})
}

// applyOverrides folds command-line settings into cfg.
func applyOverrides(cfg *config.Config, opts Options) error {
	if opts.PollMillis > 0 {
		cfg.PollInterval = config.ClampPollInterval(msToDuration(opts.PollMillis))
	}
	if path := strings.TrimSpace(opts.LogFile); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return fmt.Errorf("resolve log file: %w", err)
		}
		cfg.LogFile = expanded
	}
	return nil
}

// resolveTemplate picks the timestamp template: flag, then the template the
// user last chose in the UI, then the config file.
func resolveTemplate(flagValue string, p prefs.Prefs, fallback lineparse.Template) (lineparse.Template, error) {
	if strings.TrimSpace(flagValue) != "" {
		t, err := lineparse.ParseTemplate(flagValue)
		if err != nil {
			return 0, fmt.Errorf("parse -template: %w", err)
		}
		return t, nil
	}
	return p.TemplateOr(fallback), nil
}
