package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "wholesale"

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// StockMovementsTotal counts ledger movements by type and result (applied, rejected).
	StockMovementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_stock_movements_total",
			Help: "Stock ledger movements by type and result",
		},
		[]string{"type", "result"},
	)

	// CheckoutsTotal counts checkout attempts by outcome.
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_orders_created_total",
			Help: "Orders persisted by the checkout consolidator",
		},
	)

	// UnresolvedSupplierItemsTotal counts cart lines dropped from grouping because their supplier is unknown.
	UnresolvedSupplierItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_unresolved_supplier_items_total",
			Help: "Cart items excluded because their supplier could not be resolved",
		},
	)

	OutboxPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_outbox_publish_total",
			Help: "Order outbox publish attempts by result",
		},
		[]string{"result"},
	)
)
