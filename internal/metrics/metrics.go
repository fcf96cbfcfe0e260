// Package metrics provides Prometheus metrics for the render loop, LED sinks and MIDI input.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "keylight"

var (
	framesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "frames_total",
		Help:      "Frames rendered and submitted to the LED output",
	})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "frame_duration_seconds",
		Help:      "Time spent computing one frame",
		Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})

	activeKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "active_keys",
		Help:      "Keys not idle in the last frame",
	})

	rendererEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "enabled",
		Help:      "1 while the render loop is ticking",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "output",
		Name:      "frames_dropped_total",
		Help:      "Frames replaced by a newer frame before the sink wrote them",
	})

	sinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "output",
		Name:      "writes_total",
		Help:      "Frame writes per sink and result",
	}, []string{"sink", "result"})

	sinkHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "output",
		Name:      "healthy",
		Help:      "1 when the last write to the sink succeeded",
	}, []string{"sink"})

	midiEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "midi",
		Name:      "events_total",
		Help:      "MIDI events dispatched by kind",
	}, []string{"kind"})

	previewClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "preview",
		Name:      "clients",
		Help:      "Connected preview websocket clients",
	})

	// Local cache for SSE exporter access.
	cacheMu sync.Mutex
	cache   renderCache
)

type renderCache struct {
	frames     uint64
	dropped    uint64
	activeKeys int
}

// RenderStats holds render loop values for the SSE exporter.
type RenderStats struct {
	Frames        uint64
	DroppedFrames uint64
	ActiveKeys    int
}

// ObserveFrame records one rendered frame.
func ObserveFrame(d time.Duration, active int) {
	framesRendered.Inc()
	frameDuration.Observe(d.Seconds())
	activeKeys.Set(float64(active))

	cacheMu.Lock()
	cache.frames++
	cache.activeKeys = active
	cacheMu.Unlock()
}

// IncFramesDropped counts a frame that never reached the sink.
func IncFramesDropped() {
	framesDropped.Inc()

	cacheMu.Lock()
	cache.dropped++
	cacheMu.Unlock()
}

// SetRendererEnabled records the render loop state.
func SetRendererEnabled(enabled bool) {
	rendererEnabled.Set(boolToFloat(enabled))
}

// ObserveSinkWrite records a frame write result for sink.
func ObserveSinkWrite(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sinkWrites.WithLabelValues(sink, result).Inc()
}

// SetSinkHealthy records whether sink is currently writable.
func SetSinkHealthy(sink string, healthy bool) {
	sinkHealthy.WithLabelValues(sink).Set(boolToFloat(healthy))
}

// IncMIDIEvent counts a dispatched MIDI event of the given kind.
func IncMIDIEvent(kind string) {
	midiEvents.WithLabelValues(kind).Inc()
}

// SetPreviewClients records the number of preview clients.
func SetPreviewClients(n int) {
	previewClients.Set(float64(n))
}

// GetRenderStats returns the cumulative render counters.
func GetRenderStats() RenderStats {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	return RenderStats{
		Frames:        cache.frames,
		DroppedFrames: cache.dropped,
		ActiveKeys:    cache.activeKeys,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
