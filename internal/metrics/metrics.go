// Package metrics provides Prometheus instrumentation for the
// arbitrage core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SignalsEmitted counts signals by direction.
	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_signals_emitted_total",
		Help: "Signals emitted by the alpha model",
	}, []string{"direction"})

	// TargetsBuilt counts portfolio targets produced per cycle.
	TargetsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_targets_built_total",
		Help: "Portfolio targets built",
	})

	// TagDecodeFailures counts skipped signals/targets with bad tags.
	TagDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_tag_decode_failures_total",
		Help: "Tag decode failures (signal or target skipped)",
	})

	// OrdersPlaced counts order operations per account and outcome.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_orders_placed_total",
		Help: "Order placements by account and result",
	}, []string{"account", "result"})

	// EventsForwarded counts brokerage events re-emitted by the
	// aggregator, per stream.
	EventsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_broker_events_forwarded_total",
		Help: "Brokerage events forwarded to the unified stream",
	}, []string{"account", "stream"})

	// ConnectedAccounts tracks currently connected brokerage accounts.
	ConnectedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arb_connected_accounts",
		Help: "Number of connected brokerage accounts",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
