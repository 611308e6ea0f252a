// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	AnnotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotations_total",
			Help: "Total number of annotated replies by render mode",
		},
		[]string{"mode"},
	)

	RecommendationsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_extracted_total",
			Help: "Recommendations extracted from replies by extraction pass",
		},
		[]string{"pass"},
	)

	CatalogMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_matches_total",
			Help: "Catalog resolutions by match tier",
		},
		[]string{"tier"},
	)

	AnnotationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotation_duration_seconds",
			Help:    "Time spent annotating a reply, catalog loading included",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	AnnotationCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_cache_total",
			Help: "Annotation memo cache lookups by result",
		},
		[]string{"result"},
	)

	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_loads_total",
			Help: "Catalog loads by source and outcome",
		},
		[]string{"source", "status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Annotation API requests by route and status code",
		},
		[]string{"route", "status"},
	)
)
