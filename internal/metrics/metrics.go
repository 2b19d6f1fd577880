package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintgate_payments_processed_total",
			Help: "Total number of payment queue items processed, by terminal status",
		},
		[]string{"status"},
	)

	MintsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintgate_mints_processed_total",
			Help: "Total number of mint queue items processed, by terminal status",
		},
		[]string{"status"},
	)

	PaymentQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mintgate_payment_queue_depth",
		Help: "Number of pending payment queue items at the last batch cycle",
	})

	MintQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mintgate_mint_queue_depth",
		Help: "Number of pending mint queue items at the last batch cycle",
	})

	TxAccelerations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintgate_tx_accelerations_total",
		Help: "Total number of gas-price accelerations issued by the transaction monitor",
	})

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mintgate_batch_duration_seconds",
			Help:    "Duration of one queue batch cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)
)
