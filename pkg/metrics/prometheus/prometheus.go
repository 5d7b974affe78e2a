package prometheus

import (
	"time"

	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var _ metrics.Collector = (*PrometheusCollector)(nil)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	loansCreated        prometheus.Counter
	installmentsCreated prometheus.Counter
	operations          *prometheus.CounterVec
	operationLatency    *prometheus.HistogramVec
	refreshChanges      *prometheus.CounterVec
	refreshLatency      prometheus.Histogram
	outstanding         prometheus.Gauge
	overdueInstallments prometheus.Gauge
}

// NewPrometheusCollector creates a collector whose metrics live under namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_created_total",
			Help:      "Total number of loans created",
		}),
		installmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installments_generated_total",
			Help:      "Total number of installments generated for new loans",
		}),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of ledger write operations by operation and error class",
			},
			[]string{"operation", "error"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of ledger write operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		refreshChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_refresh_changes_total",
				Help:      "Rows whose status changed during a refresh pass",
			},
			[]string{"kind"},
		),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_refresh_duration_seconds",
			Help:      "Latency of status refresh passes",
			Buckets:   prometheus.DefBuckets,
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_outstanding_amount",
			Help:      "Amount still to be received across all loans at the last dashboard pass",
		}),
		overdueInstallments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_overdue_installments",
			Help:      "Installments overdue at the last dashboard pass",
		}),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.loansCreated,
		pc.installmentsCreated,
		pc.operations,
		pc.operationLatency,
		pc.refreshChanges,
		pc.refreshLatency,
		pc.outstanding,
		pc.overdueInstallments,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (pc *PrometheusCollector) RecordLoanCreated(installments int) {
	pc.loansCreated.Inc()
	pc.installmentsCreated.Add(float64(installments))
}

func (pc *PrometheusCollector) RecordOperation(op string, errClass string, duration time.Duration) {
	pc.operations.WithLabelValues(op, errClass).Inc()
	pc.operationLatency.WithLabelValues(op).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordRefresh(installmentsChanged, loansChanged int, duration time.Duration) {
	pc.refreshChanges.WithLabelValues("installment").Add(float64(installmentsChanged))
	pc.refreshChanges.WithLabelValues("loan").Add(float64(loansChanged))
	pc.refreshLatency.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordPortfolio(outstanding float64, overdueInstallments int) {
	pc.outstanding.Set(outstanding)
	pc.overdueInstallments.Set(float64(overdueInstallments))
}
