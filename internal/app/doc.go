// Package app is the composition root of progwatch.
//
// # Overview
//
// Run loads configuration and preferences, builds the logger and the metrics
// registry, creates one monitor.Session and hands it to a shell: the Bubble
// Tea UI, or a headless printer for scripts and CI logs.
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()        TOML settings + flag overrides
//	       ├─────> prefs.Load()         theme, template, last file
//	       ├─────> logging.New()        file, stderr (headless -debug) or nop
//	       ├─────> metrics.New()        collector observing every snapshot
//	       ├─────> monitor.New()        session publishing into state.Store
//	       ├─────> StartExporter()      optional textfile export
//	       └─────> ui.Run() | runHeadless()
//
// # Template precedence
//
// The -template flag wins, then the template last picked in the UI (prefs),
// then timestamp_template from the config file.
//
// # Headless mode
//
// runHeadless optionally prints the last -preview lines of the file, starts
// monitoring it and prints one status line per observed snapshot. It returns
// when the run stops: nil for an end marker or cancellation, an error
// wrapping the tail failure otherwise.
//
// # Shutdown
//
// On return the session is stopped and the metrics exporter writes its
// final textfile before Run exits.
package app
