// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for dosemux.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	optimizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dosemux_optimizations_total",
		Help: "Print file optimizations by source and outcome",
	}, []string{"source", "outcome"}) // source=cli|api|watch, outcome=success|failure

	optimizationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dosemux_optimization_duration_seconds",
		Help:    "Time spent optimizing a print file",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"source"})

	layersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_layers_processed_total",
		Help: "Layers passed through the optimizer",
	})

	layersChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_layers_changed_total",
		Help: "Layers whose image settings were rewritten",
	})

	imagesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_images_in_total",
		Help: "Image settings entries read by the optimizer",
	})

	imagesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_images_out_total",
		Help: "Image settings entries written by the optimizer",
	})

	masksShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_masks_shared_total",
		Help: "Generated masks replaced by an identical mask from another layer",
	})

	watchEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dosemux_watch_events_total",
		Help: "Inbox events seen by the watcher by outcome",
	}, []string{"outcome"}) // outcome=queued|ignored|processed|failed
)

// OptimizerStats is the subset of optimizer statistics exported as metrics.
type OptimizerStats struct {
	Layers        int
	LayersChanged int
	ImagesIn      int
	ImagesOut     int
	MasksShared   int
}

// RecordOptimizerStats adds one run's statistics to the counters.
func RecordOptimizerStats(s OptimizerStats) {
	layersProcessed.Add(float64(s.Layers))
	layersChanged.Add(float64(s.LayersChanged))
	imagesIn.Add(float64(s.ImagesIn))
	imagesOut.Add(float64(s.ImagesOut))
	masksShared.Add(float64(s.MasksShared))
}

// RecordOptimization records the outcome and duration of one optimization.
func RecordOptimization(source string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	optimizationsTotal.WithLabelValues(source, outcome).Inc()
	optimizationDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordWatchEvent counts a watcher event by outcome.
func RecordWatchEvent(outcome string) {
	watchEvents.WithLabelValues(outcome).Inc()
}
