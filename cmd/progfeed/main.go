package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/feed"
	"github.com/five82/progwatch/internal/lineparse"
	"github.com/five82/progwatch/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	out := flag.String("out", "progress.log", "file to write")
	template := flag.String("template", "type1", "timestamp template: type1, type2 or type3")
	count := flag.Int("count", 100, "progress lines per run")
	interval := flag.Duration("interval", 500*time.Millisecond, "mean pause between lines")
	jitter := flag.Duration("jitter", 100*time.Millisecond, "standard deviation of the pause")
	seed := flag.Uint64("seed", 0, "random seed (0 picks one)")
	loop := flag.Bool("loop", false, "rewrite the file run after run until interrupted")
	debug := flag.Bool("debug", false, "log progress to stderr")
	flag.Parse()

	tmpl, err := lineparse.ParseTemplate(*template)
	if err != nil {
		fmt.Fprintf(os.Stderr, "progfeed: %v\n", err)
		return 2
	}

	logger, err := logging.New(logging.Options{Stderr: *debug, Debug: *debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "progfeed: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w := feed.New(feed.Options{
		Template: tmpl,
		Count:    *count,
		Interval: *interval,
		Jitter:   *jitter,
		Seed:     *seed,
		Logger:   logger,
	})

	if *loop {
		err = w.Loop(ctx, *out)
	} else {
		err = w.WriteFile(ctx, *out)
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("feed interrupted", zap.String("path", *out))
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "progfeed: %v\n", err)
		return 1
	}
	return 0
}
