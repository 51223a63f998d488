package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	deposits     *prometheus.CounterVec
	mints        *prometheus.CounterVec
	burns        *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	swaps        *prometheus.CounterVec
	opFailures   *prometheus.CounterVec
	floatBalance *prometheus.GaugeVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_deposits_total",
				Help: "Count of collateral deposits per market.",
			}, []string{"market"}),
			mints: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_mints_total",
				Help: "Count of deposit-and-mint operations per market.",
			}, []string{"market"}),
			burns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_burns_total",
				Help: "Count of burn-and-withdraw operations per market.",
			}, []string{"market"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_liquidations_total",
				Help: "Count of completed liquidations per market.",
			}, []string{"market"}),
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "exchange_swaps_total",
				Help: "Count of completed swaps by direction.",
			}, []string{"direction"}),
			opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_operation_failures_total",
				Help: "Count of rejected operations by module and method.",
			}, []string{"module", "method"}),
			floatBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "exchange_float_balance",
				Help: "Current exchange float per synthetic asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			marketRegistry.deposits,
			marketRegistry.mints,
			marketRegistry.burns,
			marketRegistry.liquidations,
			marketRegistry.swaps,
			marketRegistry.opFailures,
			marketRegistry.floatBalance,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveDeposit(marketName string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(label(marketName)).Inc()
}

func (m *MarketMetrics) ObserveMint(marketName string) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(label(marketName)).Inc()
}

func (m *MarketMetrics) ObserveBurn(marketName string) {
	if m == nil {
		return
	}
	m.burns.WithLabelValues(label(marketName)).Inc()
}

func (m *MarketMetrics) ObserveLiquidation(marketName string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(label(marketName)).Inc()
}

func (m *MarketMetrics) ObserveSwap(direction string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(label(direction)).Inc()
}

func (m *MarketMetrics) ObserveFailure(module, method string) {
	if m == nil {
		return
	}
	m.opFailures.WithLabelValues(label(module), label(method)).Inc()
}

func (m *MarketMetrics) SetFloat(asset string, balance float64) {
	if m == nil {
		return
	}
	m.floatBalance.WithLabelValues(label(asset)).Set(balance)
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
