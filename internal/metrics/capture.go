// Package metrics provides Prometheus metrics for the capture pipeline.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons used as the "reason" label of FramesDropped.
const (
	DropQueueFull = "queue_full"
	DropRate      = "rate"
	DropOverwrite = "overwrite"
)

// Pool events used as the "event" label of PoolEvents.
const (
	PoolHit     = "hit"
	PoolMiss    = "miss"
	PoolDiscard = "discard"
)

// Capture contains all Prometheus metrics for one capture controller. A nil
// *Capture is valid and records nothing.
type Capture struct {
	FramesCaptured  prometheus.Counter
	FramesDelivered prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	AudioChunks     prometheus.Counter
	CaptureErrors   *prometheus.CounterVec
	PoolEvents      *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	Recording       prometheus.Gauge
	StopLatency     prometheus.Histogram
}

// NewCapture creates the capture metrics and registers them with registry.
func NewCapture(registry prometheus.Registerer) (*Capture, error) {
	m := &Capture{
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capture_video_frames_captured_total",
			Help: "Video frames copied out of the camera and enqueued",
		}),
		FramesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capture_video_frames_delivered_total",
			Help: "Video frames handed to the delivery sink",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_video_frames_dropped_total",
			Help: "Video frames dropped before reaching the pending queue",
		}, []string{"reason"}),
		AudioChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capture_audio_chunks_delivered_total",
			Help: "Audio chunks handed to the delivery sink",
		}),
		CaptureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_errors_total",
			Help: "Transient capture errors absorbed by the workers",
		}, []string{"stream"}),
		PoolEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_frame_pool_events_total",
			Help: "Frame pool hits, misses and discards",
		}, []string{"event"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "capture_pending_queue_depth",
			Help: "Frames waiting in the pending queue",
		}),
		Recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "capture_recording",
			Help: "1 while a capture session is active",
		}),
		StopLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_stop_latency_seconds",
			Help:    "Time taken to stop and join the capture workers",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, errors.Wrap(err, "failed to register capture metrics")
		}
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *Capture) Describe(ch chan<- *prometheus.Desc) {
	m.FramesCaptured.Describe(ch)
	m.FramesDelivered.Describe(ch)
	m.FramesDropped.Describe(ch)
	m.AudioChunks.Describe(ch)
	m.CaptureErrors.Describe(ch)
	m.PoolEvents.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.Recording.Describe(ch)
	m.StopLatency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Capture) Collect(ch chan<- prometheus.Metric) {
	m.FramesCaptured.Collect(ch)
	m.FramesDelivered.Collect(ch)
	m.FramesDropped.Collect(ch)
	m.AudioChunks.Collect(ch)
	m.CaptureErrors.Collect(ch)
	m.PoolEvents.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.Recording.Collect(ch)
	m.StopLatency.Collect(ch)
}

func (m *Capture) FrameCaptured() {
	if m != nil {
		m.FramesCaptured.Inc()
	}
}

func (m *Capture) FrameDelivered() {
	if m != nil {
		m.FramesDelivered.Inc()
	}
}

func (m *Capture) FrameDropped(reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Capture) AudioChunkDelivered() {
	if m != nil {
		m.AudioChunks.Inc()
	}
}

// CaptureError counts a transient error on stream ("video" or "audio").
func (m *Capture) CaptureError(stream string) {
	if m != nil {
		m.CaptureErrors.WithLabelValues(stream).Inc()
	}
}

func (m *Capture) PoolEvent(event string) {
	if m != nil {
		m.PoolEvents.WithLabelValues(event).Inc()
	}
}

func (m *Capture) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Capture) SetRecording(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Recording.Set(1)
	} else {
		m.Recording.Set(0)
	}
}

// ObserveStop records how long a StopRecording call took.
func (m *Capture) ObserveStop(d time.Duration) {
	if m != nil {
		m.StopLatency.Observe(d.Seconds())
	}
}
