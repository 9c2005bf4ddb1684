package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts settlement attempts by entry path, payment type, and outcome.
	SettlementTotal *prometheus.CounterVec
	// SignatureRejectTotal counts rejected gateway signatures.
	SignatureRejectTotal *prometheus.CounterVec
	// MaterializeDuration records the latency of the atomic order materialization.
	MaterializeDuration prometheus.Histogram
	// CallbackReplayTotal counts duplicate callback deliveries short-circuited before settlement.
	CallbackReplayTotal prometheus.Counter
	// SideEffectTotal counts post-settlement side effect outcomes by kind.
	SideEffectTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers settlement-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_total",
			Help:      "Count of settlement attempts by path, payment type, and result.",
		}, []string{"path", "type", "result"})
		SignatureRejectTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_reject_total",
			Help:      "Count of gateway callbacks rejected during signature verification.",
		}, []string{"path"})
		MaterializeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_materialize_duration_ms",
			Help:      "Latency of the atomic order creation transaction in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		})
		CallbackReplayTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_replay_total",
			Help:      "Count of duplicate gateway callbacks answered idempotently.",
		})
		SideEffectTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_total",
			Help:      "Count of post-settlement side effect outcomes.",
		}, []string{"kind", "result"})

		reg.MustRegister(SettlementTotal, SignatureRejectTotal, MaterializeDuration, CallbackReplayTotal, SideEffectTotal)
	})
}
