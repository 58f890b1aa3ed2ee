package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Cache lookups against decorated repositories, labeled by store and result.",
	},
	[]string{"store", "result"}, // result: 'hit', 'miss'
)

func IncCacheRequest(store, result string) {
	cacheRequestsTotal.WithLabelValues(norm(store), norm(result)).Inc()
}
