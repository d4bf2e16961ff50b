package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the imaging pipeline.
type PipelineMetrics struct {
	FilesProcessed    *prometheus.CounterVec
	BytesEncoded      *prometheus.CounterVec
	ArchiveUploads    *prometheus.CounterVec
	RenderedCacheHits prometheus.Counter
	RenderedCacheMiss prometheus.Counter
	JobsInFlight      prometheus.Gauge
}

// NewPipelineMetrics initializes and registers the Prometheus metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		FilesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imaging_pipeline",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total number of processed files by outcome.",
		}, []string{"outcome"}), // outcome: success, parse_error, pixel_data_error, conversion_error, storage_error, network_error, validation_error, unsupported_format
		BytesEncoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imaging_pipeline",
			Subsystem: "codec",
			Name:      "bytes_encoded_total",
			Help:      "Total number of encoded output bytes by resolution tier.",
		}, []string{"tier"}),
		ArchiveUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imaging_pipeline",
			Subsystem: "archive",
			Name:      "uploads_total",
			Help:      "Total number of archive uploads by provider type and status.",
		}, []string{"provider", "status"}),
		RenderedCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "imaging_pipeline",
			Subsystem: "cache",
			Name:      "rendered_hits_total",
			Help:      "Total number of rendered image cache hits.",
		}),
		RenderedCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "imaging_pipeline",
			Subsystem: "cache",
			Name:      "rendered_misses_total",
			Help:      "Total number of rendered image cache misses.",
		}),
		JobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "imaging_pipeline",
			Subsystem: "queue",
			Name:      "jobs_in_flight_gauge",
			Help:      "Number of batch jobs currently being processed.",
		}),
	}
}
