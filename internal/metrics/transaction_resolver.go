package metrics

import (
	"errors"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transaction_resolver",
		Name:      "resolve_total",
		Help:      "Count of transaction resolutions by outcome.",
	}, []string{"coin", "network", "status"})

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "transaction_resolver",
		Name:      "resolve_duration_seconds",
		Help:      "Duration of resolving a transaction.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coin", "network", "status"})

	inputDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transaction_resolver",
		Name:      "input_degraded_total",
		Help:      "Count of inputs reported without origin.",
	}, []string{"coin", "network", "reason"})
)

// TransactionResolver tracks metrics for transaction resolutions.
type TransactionResolver struct {
	coin    model.Coin
	network model.Network
}

// NewTransactionResolver constructs a TransactionResolver collector.
func NewTransactionResolver(coin model.Coin, network model.Network) *TransactionResolver {
	coin, network = labelsOrUnknown(coin, network)
	return &TransactionResolver{coin: coin, network: network}
}

// ObserveResolve records a resolution outcome and duration.
func (m TransactionResolver) ObserveResolve(err error, started time.Time) {
	status := resolveStatus(err)
	resolveTotal.WithLabelValues(string(m.coin), string(m.network), status).Inc()
	resolveDuration.WithLabelValues(string(m.coin), string(m.network), status).
		Observe(time.Since(started).Seconds())
}

// ObserveInputDegraded records an input whose origin fell back to the empty endpoint.
func (m TransactionResolver) ObserveInputDegraded(reason string) {
	inputDegradedTotal.WithLabelValues(string(m.coin), string(m.network), reason).Inc()
}

func resolveStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, chain.ErrNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, chain.ErrAmbiguousOutputs):
		return "ambiguous"
	default:
		return "error"
	}
}
