package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// renderDuration tracks how long drawing a layout into a print file takes.
	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dosemux_render_duration_seconds",
		Help:    "Time spent rendering a layout into a print file",
		Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 14), // 1ms to ~8s
	}, []string{"outcome"})

	// renderMasks counts group masks drawn by the renderer.
	renderMasks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_render_masks_total",
		Help: "Group masks drawn by the layout renderer",
	})

	// renderBytes counts encoded PNG bytes produced by the renderer.
	renderBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_render_mask_bytes_total",
		Help: "Encoded PNG bytes of rendered group masks",
	})
)

// RecordRender records one render call. masks and pngBytes are zero on failure.
func RecordRender(d time.Duration, masks int, pngBytes int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	renderDuration.WithLabelValues(outcome).Observe(d.Seconds())
	renderMasks.Add(float64(masks))
	renderBytes.Add(float64(pngBytes))
}
