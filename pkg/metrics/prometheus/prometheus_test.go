package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	pc := NewPrometheusCollector("loanledger")
	registry := prometheus.NewRegistry()
	require.NoError(t, pc.Register(registry))

	pc.RecordLoanCreated(12)
	pc.RecordLoanCreated(3)
	pc.RecordOperation("record_payment", "none", 5*time.Millisecond)
	pc.RecordOperation("record_payment", "not_found", time.Millisecond)
	pc.RecordOperation("record_payment", "none", time.Millisecond)
	pc.RecordRefresh(4, 1, time.Second)
	pc.RecordPortfolio(1344.5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(pc.loansCreated))
	assert.Equal(t, 15.0, testutil.ToFloat64(pc.installmentsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(pc.operations.WithLabelValues("record_payment", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pc.operations.WithLabelValues("record_payment", "not_found")))
	assert.Equal(t, 4.0, testutil.ToFloat64(pc.refreshChanges.WithLabelValues("installment")))
	assert.Equal(t, 1344.5, testutil.ToFloat64(pc.outstanding))
	assert.Equal(t, 2.0, testutil.ToFloat64(pc.overdueInstallments))

	// Registering twice against the same registry is rejected.
	assert.Error(t, pc.Register(registry))
}
