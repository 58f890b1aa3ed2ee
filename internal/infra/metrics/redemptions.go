package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(redemptionsTotal, batchesTotal) }

var redemptionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redemptions_total",
		Help: "Total redemption attempts reaching a classification, labeled by outcome.",
	},
	[]string{"outcome"},
)

var batchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "batches_total",
		Help: "Total finished redemption batches, labeled by final status.",
	},
	[]string{"status"},
)

func IncRedemption(outcome string) {
	redemptionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncBatch(status string) {
	batchesTotal.WithLabelValues(norm(status)).Inc()
}
