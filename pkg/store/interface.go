package store

import (
	"github.com/google/uuid"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
)

// Storage defines the persistence operations the ledger needs. Implementations return
// errors wrapping apperrors.ErrNotFound for unknown IDs.
type Storage interface {
	// CreateLoan stores a loan together with its installments; either all rows exist or none.
	CreateLoan(loan *models.Loan, installments []*models.Installment) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	// DeleteLoan removes the loan, its installments and its payments.
	DeleteLoan(id uuid.UUID) error
	GetAllLoans() ([]*models.Loan, error)

	GetInstallmentsForLoan(loanID uuid.UUID) ([]*models.Installment, error)
	UpdateInstallments(installments []*models.Installment) error

	GetPayment(id uuid.UUID) (*models.Payment, error)
	GetPaymentsForLoan(loanID uuid.UUID) ([]*models.Payment, error)
	// CommitPayment inserts payment and saves the installment and loan in one transaction.
	CommitPayment(loan *models.Loan, inst *models.Installment, payment *models.Payment) error
	// RevertPayment deletes the payment and saves the installment and loan in one transaction.
	RevertPayment(loan *models.Loan, inst *models.Installment, paymentID uuid.UUID) error

	// Snapshot returns every loan, installment and payment as of a single point in time.
	Snapshot() ([]*models.Loan, []*models.Installment, []*models.Payment, error)

	Close() error
}

var _ Storage = (*SQLiteStore)(nil)
