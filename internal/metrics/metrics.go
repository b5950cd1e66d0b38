// Package metrics exposes the gateway's internal health counters over
// Prometheus, the only place component code reaches past logging to
// report its own state.
package metrics

import (
	"net/http"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueDepth reports how many packets currently sit in a queue,
	// by queue name ("high_prio", "low_prio", "alerts").
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "queue_depth",
		Help:      "Number of items currently queued, by queue name.",
	}, []string{"queue"})

	// PacketsDropped counts packets discarded because their queue was
	// full, by queue name.
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "packets_dropped_total",
		Help:      "Total packets dropped because their queue was full.",
	}, []string{"queue"})

	// UploadAttempts counts modem upload attempts by outcome ("success" or "failure").
	UploadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "upload_attempts_total",
		Help:      "Total upstream upload attempts, by outcome.",
	}, []string{"outcome"})

	// AlertsSent counts alert SMS delivery attempts by outcome.
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "alerts_sent_total",
		Help:      "Total alert delivery attempts, by outcome.",
	}, []string{"outcome"})

	// ComponentRestarts counts how many times the supervisor has
	// observed a component goroutine terminate abnormally, by component name.
	ComponentRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "component_terminations_total",
		Help:      "Total abnormal component terminations observed by the supervisor.",
	}, []string{"component"})
)

// Serve starts a blocking HTTP server exposing /metrics on addr. It
// is intended to run in its own goroutine; callers should log the
// returned error once the server stops.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("metrics: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
