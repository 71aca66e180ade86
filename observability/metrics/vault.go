package metrics

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	operations   *prometheus.CounterVec
	interest     *prometheus.CounterVec
	feesDeferred *prometheus.CounterVec
	depositSize  *prometheus.GaugeVec
	debtSize     *prometheus.GaugeVec
	utilization  *prometheus.GaugeVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily registered vault collectors.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Vault operations segmented by denom, operation and outcome.",
			}, []string{"denom", "operation", "outcome"}),
			interest: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "vault",
				Name:      "interest_accrued_total",
				Help:      "Interest added to the debt pool in base units.",
			}, []string{"denom"}),
			feesDeferred: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "vault",
				Name:      "fees_deferred_total",
				Help:      "Accruals whose fee was parked because the deposit pool had no shares.",
			}, []string{"denom"}),
			depositSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ghostcredit",
				Subsystem: "vault",
				Name:      "deposit_size",
				Help:      "Deposit pool size in base units.",
			}, []string{"denom"}),
			debtSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ghostcredit",
				Subsystem: "vault",
				Name:      "debt_size",
				Help:      "Debt pool size in base units.",
			}, []string{"denom"}),
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ghostcredit",
				Subsystem: "vault",
				Name:      "utilization_ratio",
				Help:      "Debt over deposits, clamped to [0,1].",
			}, []string{"denom"}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.interest,
			vaultRegistry.feesDeferred,
			vaultRegistry.depositSize,
			vaultRegistry.debtSize,
			vaultRegistry.utilization,
		)
	})
	return vaultRegistry
}

// ObserveOperation counts a vault entry point by outcome.
func (m *VaultMetrics) ObserveOperation(denom, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(normalizeDenom(denom), operation, outcome).Inc()
}

func (m *VaultMetrics) AddInterest(denom string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.interest.WithLabelValues(normalizeDenom(denom)).Add(toFloat(amount))
}

func (m *VaultMetrics) ObserveFeeDeferred(denom string) {
	if m == nil {
		return
	}
	m.feesDeferred.WithLabelValues(normalizeDenom(denom)).Inc()
}

// SetPools records the pool sizes after a state transition.
func (m *VaultMetrics) SetPools(denom string, deposit, debt *big.Int, utilization float64) {
	if m == nil {
		return
	}
	label := normalizeDenom(denom)
	m.depositSize.WithLabelValues(label).Set(toFloat(deposit))
	m.debtSize.WithLabelValues(label).Set(toFloat(debt))
	m.utilization.WithLabelValues(label).Set(utilization)
}

func normalizeDenom(denom string) string {
	trimmed := strings.TrimSpace(denom)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
