// Package portfolio summarizes every loan, installment and payment into dashboard figures.
package portfolio

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/ledger"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultUpcomingWindow = 7 * 24 * time.Hour
	DefaultUpcomingLimit  = 5
)

// Options controls the dashboard lists.
type Options struct {
	// UpcomingWindow is how far ahead of now a pending installment counts as upcoming.
	UpcomingWindow time.Duration
	// UpcomingLimit caps the upcoming list.
	UpcomingLimit int
	// OverdueLimit caps the overdue list; zero means no cap.
	OverdueLimit int
}

func DefaultOptions() Options {
	return Options{
		UpcomingWindow: DefaultUpcomingWindow,
		UpcomingLimit:  DefaultUpcomingLimit,
	}
}

// Aggregate computes the dashboard at now. It reads its inputs only; installment and loan
// states are derived from now rather than taken from storage, so one call always sees a
// consistent split and the active, completed, overdue and defaulted counts add up to
// TotalLoans.
func Aggregate(loans []*models.Loan, installments []*models.Installment, payments []*models.Payment, now time.Time, opts Options) models.Dashboard {
	if opts.UpcomingWindow <= 0 {
		opts.UpcomingWindow = DefaultUpcomingWindow
	}
	if opts.UpcomingLimit <= 0 {
		opts.UpcomingLimit = DefaultUpcomingLimit
	}

	d := models.Dashboard{
		GeneratedAt:            now,
		TotalAmountLent:        decimal.Zero,
		TotalAmountToReceive:   decimal.Zero,
		TotalAmountReceived:    decimal.Zero,
		TotalInterestExpected:  decimal.Zero,
		TotalInterestEarned:    decimal.Zero,
		TotalPrincipalReceived: decimal.Zero,
		UpcomingPayments:       []models.InstallmentSummary{},
		OverduePayments:        []models.InstallmentSummary{},
	}

	byLoan := make(map[uuid.UUID][]*models.Installment, len(loans))
	for _, inst := range installments {
		byLoan[inst.LoanID] = append(byLoan[inst.LoanID], inst)
	}

	byID := make(map[uuid.UUID]*models.Loan, len(loans))
	for _, loan := range loans {
		byID[loan.ID] = loan
		d.TotalLoans++
		switch ledger.DeriveLoanStatus(loan, byLoan[loan.ID], now) {
		case models.LoanStatusActive:
			d.ActiveLoans++
		case models.LoanStatusCompleted:
			d.CompletedLoans++
		case models.LoanStatusOverdue:
			d.OverdueLoans++
		case models.LoanStatusDefaulted:
			d.DefaultedLoans++
		}
		d.TotalAmountLent = d.TotalAmountLent.Add(loan.Principal)
	}

	horizon := now.Add(opts.UpcomingWindow)
	for _, inst := range installments {
		d.TotalAmountToReceive = d.TotalAmountToReceive.Add(inst.TotalAmount)
		d.TotalAmountReceived = d.TotalAmountReceived.Add(inst.PaidAmount)
		d.TotalInterestExpected = d.TotalInterestExpected.Add(inst.InterestAmount)

		switch ledger.DeriveStatus(inst, now) {
		case models.InstallmentStatusPending:
			if !inst.DueDate.Before(now) && !inst.DueDate.After(horizon) {
				d.UpcomingPayments = append(d.UpcomingPayments, summarize(inst, byID, models.InstallmentStatusPending))
			}
		case models.InstallmentStatusOverdue:
			d.OverduePayments = append(d.OverduePayments, summarize(inst, byID, models.InstallmentStatusOverdue))
		}
	}

	for _, p := range payments {
		d.TotalInterestEarned = d.TotalInterestEarned.Add(p.InterestPortion)
		d.TotalPrincipalReceived = d.TotalPrincipalReceived.Add(p.PrincipalPortion)
	}

	d.TotalOutstanding = d.TotalAmountToReceive.Sub(d.TotalAmountReceived)
	d.TotalPrincipalOutstanding = d.TotalAmountLent.Sub(d.TotalPrincipalReceived)

	sortByDueDate(d.UpcomingPayments)
	sortByDueDate(d.OverduePayments)
	if len(d.UpcomingPayments) > opts.UpcomingLimit {
		d.UpcomingPayments = d.UpcomingPayments[:opts.UpcomingLimit]
	}
	if opts.OverdueLimit > 0 && len(d.OverduePayments) > opts.OverdueLimit {
		d.OverduePayments = d.OverduePayments[:opts.OverdueLimit]
	}
	return d
}

func summarize(inst *models.Installment, loans map[uuid.UUID]*models.Loan, status models.InstallmentStatus) models.InstallmentSummary {
	s := models.InstallmentSummary{
		LoanID:        inst.LoanID,
		InstallmentID: inst.ID,
		Number:        inst.Number,
		DueDate:       inst.DueDate,
		TotalAmount:   inst.TotalAmount,
		PaidAmount:    inst.PaidAmount,
		Status:        status,
	}
	if loan, ok := loans[inst.LoanID]; ok {
		s.BorrowerName = loan.BorrowerName
	}
	return s
}

// sortByDueDate orders rows by due date; ties fall back to loan ID and installment number
// so the order never depends on input order.
func sortByDueDate(rows []models.InstallmentSummary) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.LoanID != b.LoanID {
			return a.LoanID.String() < b.LoanID.String()
		}
		return a.Number < b.Number
	})
}
