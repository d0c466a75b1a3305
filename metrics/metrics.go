package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type OrderStatus string

const (
	OrderStatusPlaced OrderStatus = "placed"
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusUnresolved counts orders that were placed but never
	// confirmed within the polling budget. These are candidates for
	// manual reconciliation, the order id is in the logs.
	OrderStatusUnresolved OrderStatus = "unresolved"
)

type timeSinceFunc func(t time.Time) time.Duration

// Used to override time sensitive properties in tests.
var timeSinceFn = timeSinceFunc(func(t time.Time) time.Duration {
	return time.Since(t)
})

var (
	ordersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jumpgate_volume_orders_total",
		Help: "Counter tracking portable storage order outcomes",
	}, []string{"status"})

	pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jumpgate_volume_order_poll_duration_seconds",
		Help:    "Histogram tracking order fulfillment poll durations in seconds",
		Buckets: []float64{.1, .5, 1, 2, 4, 6, 8, 10, 15, 30},
	})

	cancellationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jumpgate_volume_cancellations_total",
		Help: "Counter tracking volume billing cancellations",
	})
)

func init() {
	prometheus.MustRegister(
		ordersTotal,
		pollDuration,
		cancellationsTotal,
	)
}

func IncOrdersTotal(status OrderStatus) {
	ordersTotal.WithLabelValues(string(status)).Inc()
}

func ObservePollDuration(start time.Time) {
	pollDuration.Observe(timeSinceFn(start).Seconds())
}

func IncCancellationsTotal() {
	cancellationsTotal.Inc()
}
