// Package metrics holds the business counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders persisted, labelled by whether a payment link was issued",
		},
		[]string{"payment_link"},
	)

	stockRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_stock_rejections_total",
			Help: "Checkouts rejected for insufficient stock",
		},
	)

	paymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verifications by outcome",
		},
		[]string{"result"},
	)

	paymentGatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_errors_total",
			Help: "Payment gateway transport/config failures",
		},
		[]string{"op"},
	)

	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications recorded, by type",
		},
		[]string{"type"},
	)

	eventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_events_dropped_total",
			Help: "Notification events dropped because the dispatch queue was full",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ordersCreatedTotal,
		stockRejectionsTotal,
		paymentVerificationsTotal,
		paymentGatewayErrorsTotal,
		notificationsSentTotal,
		eventsDroppedTotal,
	)
}

func OrderCreated(withLink bool) {
	label := "no"
	if withLink {
		label = "yes"
	}
	ordersCreatedTotal.WithLabelValues(label).Inc()
}

func StockRejected() { stockRejectionsTotal.Inc() }

// PaymentVerified result: successful | duplicate | declined | error
func PaymentVerified(result string) {
	paymentVerificationsTotal.WithLabelValues(result).Inc()
}

func GatewayError(op string) {
	paymentGatewayErrorsTotal.WithLabelValues(op).Inc()
}

func NotificationSent(kind string) {
	notificationsSentTotal.WithLabelValues(kind).Inc()
}

func EventDropped() { eventsDroppedTotal.Inc() }

// RegisterPaymentBreaker 导出支付网关熔断器状态：0 closed, 1 open, 2 half-open
func RegisterPaymentBreaker(reg prometheus.Registerer, state func() float64) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "payment_gateway_circuit_state",
			Help: "Payment gateway circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		state,
	))
}

// RegisterProductCache 导出商品缓存的命中、未命中与回源次数
func RegisterProductCache(reg prometheus.Registerer, counters func() (hits, misses, loads int64)) error {
	read := func(pick func(h, m, l int64) int64) func() float64 {
		return func() float64 {
			h, m, l := counters()
			return float64(pick(h, m, l))
		}
	}
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "product_cache_hits_total",
			Help: "Product detail reads served from redis",
		}, read(func(h, _, _ int64) int64 { return h })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "product_cache_misses_total",
			Help: "Product detail reads not found in redis",
		}, read(func(_, m, _ int64) int64 { return m })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "product_cache_loads_total",
			Help: "Product detail reads loaded from the database",
		}, read(func(_, _, l int64) int64 { return l })),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
