// Package metrics defines the instrumentation hooks of the ledger service.
package metrics

import (
	"time"
)

// Collector receives ledger events for export to a metrics backend.
type Collector interface {
	// RecordLoanCreated counts a new loan and the installments generated for it.
	RecordLoanCreated(installments int)
	// RecordOperation records a ledger write ("create_loan", "record_payment", ...).
	RecordOperation(op string, errClass string, duration time.Duration)
	// RecordRefresh records a status refresh pass and how many rows changed.
	RecordRefresh(installmentsChanged, loansChanged int, duration time.Duration)
	// RecordPortfolio publishes the latest portfolio totals.
	RecordPortfolio(outstanding float64, overdueInstallments int)
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordLoanCreated(installments int)                                         {}
func (NoOpCollector) RecordOperation(op string, errClass string, duration time.Duration)         {}
func (NoOpCollector) RecordRefresh(installmentsChanged, loansChanged int, duration time.Duration) {}
func (NoOpCollector) RecordPortfolio(outstanding float64, overdueInstallments int)               {}
