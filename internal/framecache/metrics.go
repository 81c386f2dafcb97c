package framecache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for a frame cache
type Metrics struct {
	Hits            prometheus.Counter
	Misses          prometheus.Counter
	Produced        prometheus.Counter
	DecodeFailures  prometheus.Counter
	Evictions       prometheus.Counter
	PressureEvents  prometheus.Counter
	WindowSize      prometheus.Gauge
	MaxWindowSize   prometheus.Gauge
	ResidentFrames  prometheus.Gauge
	ProduceDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the provided registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifcat_frame_cache_hits_total",
			Help: "Frame requests served from the cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifcat_frame_cache_misses_total",
			Help: "Frame requests not in the cache",
		}),
		Produced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifcat_frame_cache_produced_total",
			Help: "Frames decoded and delivered to the cache",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifcat_frame_cache_decode_failures_total",
			Help: "Frames that failed to decode in the background",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifcat_frame_cache_evictions_total",
			Help: "Frames removed from the cache",
		}),
		PressureEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifcat_frame_cache_memory_pressure_total",
			Help: "Memory pressure signals handled",
		}),
		WindowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gifcat_frame_cache_window_size",
			Help: "Number of frames the cache currently keeps resident",
		}),
		MaxWindowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gifcat_frame_cache_max_window_size",
			Help: "Adaptive upper bound of the window",
		}),
		ResidentFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gifcat_frame_cache_resident_frames",
			Help: "Number of decoded frames in memory",
		}),
		ProduceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gifcat_frame_cache_produce_seconds",
			Help:    "Time to decode and predraw one frame",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	reg.MustRegister(
		m.Hits,
		m.Misses,
		m.Produced,
		m.DecodeFailures,
		m.Evictions,
		m.PressureEvents,
		m.WindowSize,
		m.MaxWindowSize,
		m.ResidentFrames,
		m.ProduceDuration,
	)

	return m
}
