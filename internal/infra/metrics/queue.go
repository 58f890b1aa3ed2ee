package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueDepth, queueItemsTotal) }

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Items currently waiting in the redemption/validation queue.",
	},
)

var queueItemsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_items_total",
		Help: "Total items enqueued, labeled by operation kind.",
	},
	[]string{"kind"}, // 'validate', 'redeem'
)

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

func IncQueueItem(kind string) {
	queueItemsTotal.WithLabelValues(norm(kind)).Inc()
}
