// Package metrics records per-run Prometheus metrics and writes them in
// the text exposition format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stepBuckets cover compute steps from sub-millisecond to multi-second.
var stepBuckets = prometheus.ExponentialBuckets(0.0005, 2, 14)

// Recorder collects the metrics of one run in its own registry.
type Recorder struct {
	reg *prometheus.Registry

	stepSeconds   prometheus.Histogram
	renderSeconds prometheus.Histogram
	framesWritten prometheus.Counter
	framesSkipped *prometheus.CounterVec
	bodies        prometheus.Gauge
}

// NewRecorder creates a recorder labelled with the backend name.
func NewRecorder(backend string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"backend": backend}, reg))

	return &Recorder{
		reg: reg,
		stepSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nbody_step_seconds",
			Help:    "Wall time of one simulation step including the device wait.",
			Buckets: stepBuckets,
		}),
		renderSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nbody_render_seconds",
			Help:    "Wall time of rendering and extracting one frame.",
			Buckets: stepBuckets,
		}),
		framesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "nbody_frames_written_total",
			Help: "Frames handed to the image writer.",
		}),
		framesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nbody_frames_skipped_total",
			Help: "Frames dropped after a recoverable failure, by operation.",
		}, []string{"op"}),
		bodies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nbody_bodies",
			Help: "Number of simulated bodies.",
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveStep records the duration of one simulation step.
func (r *Recorder) ObserveStep(d time.Duration) { r.stepSeconds.Observe(d.Seconds()) }

// ObserveRender records the duration of one render and extraction.
func (r *Recorder) ObserveRender(d time.Duration) { r.renderSeconds.Observe(d.Seconds()) }

// FrameWritten counts a frame handed to the writer.
func (r *Recorder) FrameWritten() { r.framesWritten.Inc() }

// FrameSkipped counts a frame dropped by op.
func (r *Recorder) FrameSkipped(op string) { r.framesSkipped.WithLabelValues(op).Inc() }

// SetBodies records the body count.
func (r *Recorder) SetBodies(n int) { r.bodies.Set(float64(n)) }

// Flush writes every metric to path atomically.
func (r *Recorder) Flush(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
