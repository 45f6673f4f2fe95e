package services

import (
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/datatypes"
)

var (
	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zapmenu_gateway_request_duration_seconds",
			Help:    "Payment gateway request latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"operation", "outcome"},
	)

	billingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapmenu_billing_transitions_total",
			Help: "Subscription status transitions applied by reconciliation",
		},
		[]string{"from", "to"},
	)

	paymentsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapmenu_payments_applied_total",
			Help: "Confirmed payments written to the subscription record",
		},
		[]string{"method"},
	)

	pixSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zapmenu_pix_sessions_active",
		Help: "PIX sessions currently polling",
	})
)

// auditMeta records who wrote the subscription record last.
func auditMeta(source, actor string, at time.Time) datatypes.JSON {
	b, _ := json.Marshal(map[string]string{
		"source": source,
		"actor":  actor,
		"at":     at.UTC().Format(time.RFC3339),
	})
	return datatypes.JSON(b)
}
