package portfolio

import (
	"fmt"
	"time"

	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/ledger"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/metrics"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
)

// Source supplies a point-in-time copy of the ledger. *ledger.Ledger implements it.
type Source interface {
	Snapshot() ([]*models.Loan, []*models.Installment, []*models.Payment, error)
}

// Service loads a snapshot and aggregates it.
type Service struct {
	source  Source
	metrics metrics.Collector
	opts    Options
}

func NewService(source Source, collector metrics.Collector, opts Options) *Service {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Service{source: source, metrics: collector, opts: opts}
}

// Dashboard computes the portfolio figures at now and exports the headline totals.
func (s *Service) Dashboard(now time.Time) (models.Dashboard, error) {
	loans, installments, payments, err := s.source.Snapshot()
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("failed to load portfolio: %w", err)
	}

	d := Aggregate(loans, installments, payments, now, s.opts)
	outstanding, _ := d.TotalOutstanding.Float64()
	s.metrics.RecordPortfolio(outstanding, overdueCount(installments, d, now))
	return d, nil
}

// overdueCount is the uncapped number of overdue installments; the dashboard list may be
// cut by OverdueLimit.
func overdueCount(installments []*models.Installment, d models.Dashboard, now time.Time) int {
	if len(d.OverduePayments) == 0 {
		return 0
	}
	n := 0
	for _, inst := range installments {
		if ledger.DeriveStatus(inst, now) == models.InstallmentStatusOverdue {
			n++
		}
	}
	return n
}
