package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(syncRunsTotal, syncBackoffSeconds, revalidatorRunsTotal) }

var syncRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Registry synchronizer cycles, labeled by result.",
	},
	[]string{"result"}, // 'ok', 'failed'
)

var syncBackoffSeconds = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "sync_backoff_seconds",
		Help: "Current shared backoff applied to registry synchronization.",
	},
)

var revalidatorRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "revalidator_runs_total",
		Help: "Periodic revalidator sweeps, labeled by result.",
	},
	[]string{"result"}, // 'ok', 'skipped', 'failed'
)

func IncSyncRun(result string) {
	syncRunsTotal.WithLabelValues(norm(result)).Inc()
}

func SetSyncBackoff(seconds float64) {
	syncBackoffSeconds.Set(seconds)
}

func IncRevalidatorRun(result string) {
	revalidatorRunsTotal.WithLabelValues(norm(result)).Inc()
}
