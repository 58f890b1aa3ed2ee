package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(captchaCyclesTotal) }

var captchaCyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "captcha_cycles_total",
		Help: "Total fetch-solve-submit cycles, labeled by per-cycle result.",
	},
	[]string{"result"}, // 'accepted', 'rejected', 'no_candidate', 'too_frequent', 'fetch_error'
)

func IncCaptchaCycle(result string) {
	captchaCyclesTotal.WithLabelValues(norm(result)).Inc()
}
