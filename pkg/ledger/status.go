package ledger

import (
	"time"

	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
)

// DeriveStatus computes an installment's state at now. The checks run in order and the
// first match wins: fully paid, partially paid, past due, pending. A paid installment is
// never overdue, and overdue only applies to installments with nothing paid.
func DeriveStatus(inst *models.Installment, now time.Time) models.InstallmentStatus {
	switch {
	case inst.PaidAmount.GreaterThanOrEqual(inst.TotalAmount):
		return models.InstallmentStatusPaid
	case inst.PaidAmount.IsPositive():
		return models.InstallmentStatusPartial
	case now.After(inst.DueDate):
		return models.InstallmentStatusOverdue
	default:
		return models.InstallmentStatusPending
	}
}

// AllPaid reports whether every installment is fully paid. An empty set is not paid.
func AllPaid(installments []*models.Installment) bool {
	if len(installments) == 0 {
		return false
	}
	for _, inst := range installments {
		if inst.PaidAmount.LessThan(inst.TotalAmount) {
			return false
		}
	}
	return true
}

// DeriveLoanStatus computes the loan-level status from its installments. Defaulted is
// only ever set by hand and is kept as is.
func DeriveLoanStatus(loan *models.Loan, installments []*models.Installment, now time.Time) models.LoanStatus {
	if loan.Status == models.LoanStatusDefaulted {
		return models.LoanStatusDefaulted
	}
	if AllPaid(installments) {
		return models.LoanStatusCompleted
	}
	for _, inst := range installments {
		if DeriveStatus(inst, now) == models.InstallmentStatusOverdue {
			return models.LoanStatusOverdue
		}
	}
	return models.LoanStatusActive
}
