package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_detections_total",
		Help: "Total number of completed detections, by label",
	}, []string{"label"})

	DetectionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_detection_failures_total",
		Help: "Total number of failed detections, by reason",
	}, []string{"reason"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deepfake_pipeline_stage_duration_seconds",
		Help:    "Duration of detection pipeline stages",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepfake_frames_sampled_total",
		Help: "Total number of frames decoded and passed to the classifier",
	})

	FrameDecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepfake_frame_decode_failures_total",
		Help: "Total number of frames skipped because decoding failed",
	})

	CleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepfake_workspace_cleanup_failures_total",
		Help: "Total number of workspace entries that could not be removed",
	})

	VerdictCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_verdict_cache_total",
		Help: "Verdict cache lookups, by result",
	}, []string{"result"})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_uploads_total",
		Help: "Total number of upload requests, by status",
	}, []string{"status"})
)
