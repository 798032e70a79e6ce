// Package metrics mirrors session snapshots into Prometheus collectors.
//
// Nothing is served over the network. Collectors are registered on a caller
// supplied registry and can be written to a node-exporter textfile.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/five82/progwatch/internal/state"
)

// Collector implements monitor.Observer. It is safe for concurrent use.
type Collector struct {
	progress  prometheus.Gauge
	rate      prometheus.Gauge
	timeLeft  prometheus.Gauge
	eta       prometheus.Gauge
	errors    prometheus.Gauge
	warnings  prometheus.Gauge
	running   prometheus.Gauge
	lines     prometheus.Counter
	runsEnded *prometheus.CounterVec
	snapshots prometheus.Counter

	mu      sync.Mutex
	lastSeq uint64
	runID   string
	lastRun uint64 // lines already counted for runID
	ended   bool   // runID has been counted in runsEnded
}

// New registers the collectors against reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_progress_ratio",
			Help: "Latest completion fraction in [0,1].",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_rate_per_second",
			Help: "Smoothed completion rate in fraction per second; 0 while calculating.",
		}),
		timeLeft: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_time_left_seconds",
			Help: "Projected remaining time; -1 while unknown.",
		}),
		eta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_eta_timestamp_seconds",
			Help: "Projected completion as a Unix timestamp; 0 while unknown.",
		}),
		errors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_session_errors",
			Help: "Error keyword hits since the last reset.",
		}),
		warnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_session_warnings",
			Help: "Warning keyword hits since the last reset.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progwatch_running",
			Help: "1 while a monitoring run is active.",
		}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progwatch_lines_processed_total",
			Help: "Lines read from monitored files.",
		}),
		runsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progwatch_runs_ended_total",
			Help: "Monitoring runs that ended, partitioned by reason.",
		}, []string{"reason"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progwatch_snapshots_total",
			Help: "Snapshots published by the session.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		c.progress,
		c.rate,
		c.timeLeft,
		c.eta,
		c.errors,
		c.warnings,
		c.running,
		c.lines,
		c.runsEnded,
		c.snapshots,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progwatch collector: %w", err)
		}
	}
	c.timeLeft.Set(-1)
	return c, nil
}

// ObserveSnapshot updates the collectors from snap. A snapshot whose Seq is
// not above the last one observed is ignored.
func (c *Collector) ObserveSnapshot(snap state.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.Seq != 0 {
		if snap.Seq <= c.lastSeq {
			return
		}
		c.lastSeq = snap.Seq
	}

	c.snapshots.Inc()
	c.progress.Set(snap.Percent)
	c.errors.Set(float64(snap.Counters.Errors))
	c.warnings.Set(float64(snap.Counters.Warnings))
	if snap.State == state.Running {
		c.running.Set(1)
	} else {
		c.running.Set(0)
	}

	if snap.Estimate.Known() {
		c.rate.Set(snap.Estimate.Rate)
		c.timeLeft.Set(snap.Estimate.TimeLeft.Seconds())
		c.eta.Set(float64(snap.Estimate.ETA.UnixNano()) / float64(time.Second))
	} else {
		c.rate.Set(0)
		c.timeLeft.Set(-1)
		c.eta.Set(0)
	}

	if snap.RunID == "" {
		return
	}
	if snap.RunID != c.runID {
		c.runID = snap.RunID
		c.lastRun = 0
		c.ended = false
	}
	if snap.Lines > c.lastRun {
		c.lines.Add(float64(snap.Lines - c.lastRun))
		c.lastRun = snap.Lines
	}
	if snap.State == state.Stopped && !c.ended {
		c.ended = true
		reason := snap.Reason
		if reason == "" {
			reason = "unknown"
		}
		c.runsEnded.WithLabelValues(reason).Inc()
	}
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// StartExporter rewrites the textfile every interval until ctx is done, then
// writes it one last time. It returns immediately.
func StartExporter(ctx context.Context, path string, g prometheus.Gatherer, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if err := WriteTextfile(path, g); err != nil {
					logger.Warn("final metrics export failed", zap.Error(err))
				}
				return
			case <-ticker.C:
				if err := WriteTextfile(path, g); err != nil {
					logger.Warn("metrics export failed", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}()
	return done
}
