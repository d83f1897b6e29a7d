package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vipflie_jobs_processed_total",
		Help: "Total number of curation jobs processed, by outcome",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vipflie_job_processing_duration_seconds",
		Help:    "Duration of the curation pipeline, by stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipflie_frames_decoded_total",
		Help: "Total number of candidate frames decoded across all jobs",
	})

	FramesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipflie_frames_selected_total",
		Help: "Total number of frames selected for export across all jobs",
	})

	FramesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vipflie_frames_rejected_total",
		Help: "Total number of candidate frames rejected, by reason",
	}, []string{"reason"})

	DecodeGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipflie_decode_gaps_total",
		Help: "Total number of corrupt segments skipped during decode",
	})

	RelaxationRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipflie_relaxation_rounds_total",
		Help: "Total number of diversity-threshold relaxation rounds",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vipflie_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vipflie_retry_total",
		Help: "Total number of job retries",
	}, []string{"attempt"})
)
