package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InterestType string

const (
	InterestTypeSimple   InterestType = "simple"
	InterestTypeCompound InterestType = "compound"
)

// Valid reports whether t is a known interest convention.
func (t InterestType) Valid() bool {
	return t == InterestTypeSimple || t == InterestTypeCompound
}

type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusOverdue   LoanStatus = "overdue"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// Valid reports whether s is a known loan status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusCompleted, LoanStatusOverdue, LoanStatusDefaulted:
		return true
	}
	return false
}

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPartial InstallmentStatus = "partial"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

type Loan struct {
	ID               uuid.UUID       `json:"id"`
	BorrowerName     string          `json:"borrower_name"`
	Notes            string          `json:"notes,omitempty"`
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"`   // Annual percent
	InterestAmount   decimal.Decimal `json:"interest_amount"` // Total interest over the whole term
	InterestType     InterestType    `json:"interest_type"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Frequency        Frequency       `json:"frequency"`
	InstallmentCount int             `json:"installment_count"`
	Status           LoanStatus      `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TotalAmount is the principal plus the total interest figure.
func (l *Loan) TotalAmount() decimal.Decimal {
	return l.Principal.Add(l.InterestAmount)
}

type Installment struct {
	ID              uuid.UUID         `json:"id"`
	LoanID          uuid.UUID         `json:"loan_id"`
	Number          int               `json:"number"` // 1-based, unique within the loan
	DueDate         time.Time         `json:"due_date"`
	PrincipalAmount decimal.Decimal   `json:"principal_amount"`
	InterestAmount  decimal.Decimal   `json:"interest_amount"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	PaidDate        *time.Time        `json:"paid_date,omitempty"`
	Status          InstallmentStatus `json:"status"`
}

// Remaining is what is still owed on the installment, never below zero.
func (i *Installment) Remaining() decimal.Decimal {
	rest := i.TotalAmount.Sub(i.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

type Payment struct {
	ID               uuid.UUID       `json:"id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	InstallmentID    uuid.UUID       `json:"installment_id"`
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PaymentDate      time.Time       `json:"payment_date"`
	Method           string          `json:"method,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// LoanTerms is what a caller supplies to open a loan. When InterestAmount is valid the
// rate is derived from it; otherwise InterestRate is used as entered.
type LoanTerms struct {
	BorrowerName     string              `json:"borrower_name"`
	Notes            string              `json:"notes,omitempty"`
	Principal        decimal.Decimal     `json:"principal"`
	InterestRate     decimal.Decimal     `json:"interest_rate"`
	InterestAmount   decimal.NullDecimal `json:"interest_amount"`
	InterestType     InterestType        `json:"interest_type"`
	StartDate        time.Time           `json:"start_date"`
	EndDate          time.Time           `json:"end_date"`
	Frequency        Frequency           `json:"frequency"`
	InstallmentCount int                 `json:"installment_count"`
}

// LoanDetails bundles a loan with everything it owns.
type LoanDetails struct {
	Loan         *Loan          `json:"loan"`
	Installments []*Installment `json:"installments"`
	Payments     []*Payment     `json:"payments"`
}

// InstallmentSummary is a dashboard row.
type InstallmentSummary struct {
	LoanID        uuid.UUID         `json:"loan_id"`
	BorrowerName  string            `json:"borrower_name"`
	InstallmentID uuid.UUID         `json:"installment_id"`
	Number        int               `json:"number"`
	DueDate       time.Time         `json:"due_date"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	Status        InstallmentStatus `json:"status"`
}

// Dashboard is computed on demand and never persisted.
type Dashboard struct {
	GeneratedAt time.Time `json:"generated_at"`

	// The four status counts partition TotalLoans by derived loan status.
	TotalLoans     int `json:"total_loans"`
	ActiveLoans    int `json:"active_loans"`
	CompletedLoans int `json:"completed_loans"`
	OverdueLoans   int `json:"overdue_loans"`
	DefaultedLoans int `json:"defaulted_loans"`

	TotalAmountLent           decimal.Decimal `json:"total_amount_lent"`
	TotalAmountToReceive      decimal.Decimal `json:"total_amount_to_receive"`
	TotalAmountReceived       decimal.Decimal `json:"total_amount_received"`
	TotalOutstanding          decimal.Decimal `json:"total_outstanding"`
	TotalInterestExpected     decimal.Decimal `json:"total_interest_expected"`
	TotalInterestEarned       decimal.Decimal `json:"total_interest_earned"`
	TotalPrincipalReceived    decimal.Decimal `json:"total_principal_received"`
	TotalPrincipalOutstanding decimal.Decimal `json:"total_principal_outstanding"`

	UpcomingPayments []InstallmentSummary `json:"upcoming_payments"`
	OverduePayments  []InstallmentSummary `json:"overdue_payments"`
}
