package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-txreport/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementRunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement_scenario",
		Name:      "run_total",
		Help:      "Count of settlement scenario runs.",
	}, []string{"coin", "network", "status"})

	settlementRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "settlement_scenario",
		Name:      "run_duration_seconds",
		Help:      "Duration of a settlement scenario run.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"coin", "network", "status"})

	settlementBlocksGenerated = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "settlement_scenario",
		Name:      "blocks_generated",
		Help:      "Number of blocks mined before the funding target was reached.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11), // 1..1024
	}, []string{"coin", "network"})
)

// SettlementScenario tracks metrics for the regtest settlement flow.
type SettlementScenario struct {
	coin    model.Coin
	network model.Network
}

// NewSettlementScenario constructs a SettlementScenario collector.
func NewSettlementScenario(coin model.Coin, network model.Network) *SettlementScenario {
	coin, network = labelsOrUnknown(coin, network)
	return &SettlementScenario{coin: coin, network: network}
}

// ObserveRun records a scenario outcome and duration.
func (m SettlementScenario) ObserveRun(err error, started time.Time) {
	status := statusOf(err)
	settlementRunTotal.WithLabelValues(string(m.coin), string(m.network), status).Inc()
	settlementRunDuration.WithLabelValues(string(m.coin), string(m.network), status).
		Observe(time.Since(started).Seconds())
}

// ObserveBlocksGenerated records how many blocks funding took.
func (m SettlementScenario) ObserveBlocksGenerated(blocks int) {
	settlementBlocksGenerated.WithLabelValues(string(m.coin), string(m.network)).Observe(float64(blocks))
}
