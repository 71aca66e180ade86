package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CreditMetrics struct {
	accountOps        *prometheus.CounterVec
	liquidations      *prometheus.CounterVec
	liquidationSteps  *prometheus.CounterVec
	preferenceFailure prometheus.Counter
	ratioEntries      prometheus.Gauge
}

var (
	creditOnce     sync.Once
	creditRegistry *CreditMetrics
)

// Credit returns the lazily registered credit registry collectors.
func Credit() *CreditMetrics {
	creditOnce.Do(func() {
		creditRegistry = &CreditMetrics{
			accountOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "credit",
				Name:      "account_operations_total",
				Help:      "Owner account operations by kind and outcome.",
			}, []string{"operation", "outcome"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "credit",
				Name:      "liquidations_total",
				Help:      "Liquidations by terminal state.",
			}, []string{"result"}),
			liquidationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "credit",
				Name:      "liquidation_steps_total",
				Help:      "Executed liquidation queue entries by source and kind.",
			}, []string{"source", "kind"}),
			preferenceFailure: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ghostcredit",
				Subsystem: "credit",
				Name:      "preference_step_failures_total",
				Help:      "Owner preference steps that failed and were reverted.",
			}),
			ratioEntries: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ghostcredit",
				Subsystem: "credit",
				Name:      "collateral_ratio_entries",
				Help:      "Number of denoms in the collateral ratio table.",
			}),
		}
		prometheus.MustRegister(
			creditRegistry.accountOps,
			creditRegistry.liquidations,
			creditRegistry.liquidationSteps,
			creditRegistry.preferenceFailure,
			creditRegistry.ratioEntries,
		)
	})
	return creditRegistry
}

func (m *CreditMetrics) ObserveAccountOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.accountOps.WithLabelValues(operation, outcome).Inc()
}

func (m *CreditMetrics) ObserveLiquidation(result string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(result).Inc()
}

func (m *CreditMetrics) ObserveLiquidationStep(source, kind string) {
	if m == nil {
		return
	}
	m.liquidationSteps.WithLabelValues(source, kind).Inc()
}

func (m *CreditMetrics) ObservePreferenceFailure() {
	if m == nil {
		return
	}
	m.preferenceFailure.Inc()
}

// PreferenceFailures exposes the collector for assertions.
func (m *CreditMetrics) PreferenceFailures() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.preferenceFailure
}

func (m *CreditMetrics) SetRatioEntries(n int) {
	if m == nil {
		return
	}
	m.ratioEntries.Set(float64(n))
}
