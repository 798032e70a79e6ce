package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/progwatch/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/progwatch/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (optional)")
	file := flag.String("file", "", "log file to monitor")
	template := flag.String("template", "", "timestamp template: type1, type2, type3 or its layout pattern")
	pollMillis := flag.Int("poll", 0, "tail poll interval in milliseconds (optional, defaults to 200)")
	headless := flag.Bool("headless", false, "print status lines instead of starting the TUI")
	preview := flag.Int("preview", 0, "headless: print the last N lines of the file before tailing")
	logFile := flag.String("log-file", "", "write diagnostics to this file (JSON)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		File:       *file,
		Template:   *template,
		PollMillis: *pollMillis,
		Headless:   *headless,
		Preview:    *preview,
		LogFile:    *logFile,
		Debug:      *debug,
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "progwatch: %v\n", err)
		return 1
	}
	return 0
}
