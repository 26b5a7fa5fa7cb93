// Package metrics exposes pool activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/events"
	"liquidityflow/internal/model"
	"liquidityflow/internal/risk"
)

const namespace = "liquidityflow"

var eventOps = map[string]string{
	events.TypeLiquidityAdded:   model.OpProvideLiquidity,
	events.TypeLiquidityRemoved: model.OpRemoveLiquidity,
	events.TypeSwapExecuted:     model.OpSwapTokens,
	events.TypeTokensStaked:     model.OpStakeTokens,
	events.TypeTokensUnstaked:   model.OpUnstakeTokens,
	events.TypeFeeAdjusted:      model.OpAdjustFee,
}

// Metrics holds the pool collectors. It is also an events.Sink: committed
// operations are counted from the events they emit.
type Metrics struct {
	Operations        *prometheus.CounterVec
	SwapVolume        *prometheus.CounterVec
	SwapFees          *prometheus.CounterVec
	RewardsIssued     *prometheus.CounterVec
	FeeBasisPoints    *prometheus.GaugeVec
	MitigationSignals *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Pool operations by name and result kind",
			},
			[]string{"op", "result"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "swap_volume_total",
				Help:      "Swap input volume in base units",
			},
			[]string{"pool_id", "asset"},
		),
		SwapFees: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "swap_fees_total",
				Help:      "Swap fees collected in base units",
			},
			[]string{"pool_id", "asset"},
		),
		RewardsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "rewards_issued_total",
				Help:      "Reward tokens minted to liquidity providers",
			},
			[]string{"pool_id"},
		),
		FeeBasisPoints: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "fee_basis_points",
				Help:      "Current swap fee tier",
			},
			[]string{"pool_id"},
		),
		MitigationSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "risk",
				Name:      "signals_total",
				Help:      "Mitigation evaluations by action",
			},
			[]string{"feed", "action"},
		),
	}
}

func (m *Metrics) Record(env events.Envelope) {
	if op, ok := eventOps[env.Type]; ok {
		m.Operations.WithLabelValues(op, "ok").Inc()
	}
	switch ev := env.Data.(type) {
	case events.SwapExecuted:
		m.SwapVolume.WithLabelValues(env.PoolID, ev.AssetIn).Add(float64(ev.AmountIn))
		m.SwapFees.WithLabelValues(env.PoolID, ev.AssetIn).Add(float64(ev.Fee))
	case events.LiquidityAdded:
		m.RewardsIssued.WithLabelValues(env.PoolID).Add(float64(ev.RewardIssued))
	case events.FeeAdjusted:
		m.FeeBasisPoints.WithLabelValues(env.PoolID).Set(float64(ev.NewFeeBasisPoints))
	}
}

// SetFee publishes the fee tier loaded at startup.
func (m *Metrics) SetFee(poolID string, bps uint64) {
	m.FeeBasisPoints.WithLabelValues(poolID).Set(float64(bps))
}

// ObserveFailure counts a rejected operation under its error kind.
func (m *Metrics) ObserveFailure(op string, err error) {
	if err == nil {
		return
	}
	m.Operations.WithLabelValues(op, domain.Kind(err)).Inc()
}

func (m *Metrics) ObserveSignal(sig risk.Signal) {
	m.MitigationSignals.WithLabelValues(sig.Feed, string(sig.Action)).Inc()
}
