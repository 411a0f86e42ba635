package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resultsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bibwatch_results",
			Help: "Number of known results per lifecycle state",
		},
		[]string{"state"},
	)

	uploadPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibwatch_upload_passes_total",
			Help: "Upload passes that sent a batch, by outcome",
		},
		[]string{"status"},
	)

	uploadedNumbers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bibwatch_uploaded_numbers_total",
			Help: "Upload rows accepted by the remote endpoint",
		},
	)

	persistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bibwatch_persist_failures_total",
			Help: "Failed attempts to write the result set to the store",
		},
	)
)
