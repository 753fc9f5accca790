package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OperationResults counts write-path operations by outcome reason.
var OperationResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chat",
	Subsystem: "messages",
	Name:      "operation_results_total",
	Help:      "Write-path operations by operation and result reason.",
}, []string{"operation", "result"})

// RateLimitDenials counts limiter denials by action class.
var RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chat",
	Subsystem: "messages",
	Name:      "rate_limit_denials_total",
	Help:      "Rate-limited requests by action class.",
}, []string{"class"})

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
