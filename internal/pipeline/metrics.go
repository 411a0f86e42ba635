package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeFound       = "found"
	outcomeEmpty       = "empty"
	outcomeFailed      = "failed"
	outcomeUnsupported = "unsupported"
)

var (
	imagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibwatch_images_processed_total",
			Help: "Images run through detection, by outcome",
		},
		[]string{"outcome"},
	)

	detectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bibwatch_detection_duration_seconds",
			Help:    "Time to detect bib numbers in one image",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)
