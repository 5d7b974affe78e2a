// Package schedule turns a loan's terms into its installments.
//
// The schedule is a flat split, not a declining-balance amortization: total interest is
// computed once over the full loan duration and every installment carries the same
// principal share, interest share and total.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/interest"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/shopspring/decimal"
)

// MaxInstallmentCount bounds a schedule; 10000 covers weekly installments for well over a
// century.
const MaxInstallmentCount = 10000

var intervalDays = map[models.Frequency]int{
	models.FrequencyWeekly:    7,
	models.FrequencyBiweekly:  14,
	models.FrequencyMonthly:   30,
	models.FrequencyQuarterly: 90,
	models.FrequencyYearly:    365,
}

// IntervalDays returns the fixed number of days between two due dates.
func IntervalDays(f models.Frequency) (int, error) {
	days, ok := intervalDays[f]
	if !ok {
		return 0, fmt.Errorf("%w: unknown frequency %q", apperrors.ErrInvalidInput, f)
	}
	return days, nil
}

// DueDate returns the due date of the n-th installment (1-based).
func DueDate(start time.Time, f models.Frequency, n int) (time.Time, error) {
	days, err := IntervalDays(f)
	if err != nil {
		return time.Time{}, err
	}
	if n < 1 || n > MaxInstallmentCount {
		return time.Time{}, fmt.Errorf("%w: installment number %d out of range 1..%d", apperrors.ErrInvalidInput, n, MaxInstallmentCount)
	}
	return start.AddDate(0, 0, n*days), nil
}

// Generate produces installments 1..InstallmentCount for loan. The loan's InterestAmount is
// recomputed from its rate over the full duration and written back.
func Generate(loan *models.Loan) ([]*models.Installment, error) {
	if err := validateLoan(loan); err != nil {
		return nil, err
	}

	months := interest.MonthsBetween(loan.StartDate, loan.EndDate)
	totalInterest, err := interest.TotalInterest(loan.Principal, loan.InterestRate, loan.InterestType, months)
	if err != nil {
		return nil, err
	}
	return split(loan, totalInterest)
}

// split divides principal and totalInterest evenly over the installments and records
// totalInterest on the loan.
func split(loan *models.Loan, totalInterest decimal.Decimal) ([]*models.Installment, error) {
	loan.InterestAmount = totalInterest

	count := decimal.NewFromInt(int64(loan.InstallmentCount))
	principalShare := loan.Principal.Div(count)
	interestShare := totalInterest.Div(count)
	totalShare := loan.Principal.Add(totalInterest).Div(count)

	installments := make([]*models.Installment, 0, loan.InstallmentCount)
	for n := 1; n <= loan.InstallmentCount; n++ {
		due, err := DueDate(loan.StartDate, loan.Frequency, n)
		if err != nil {
			return nil, err
		}
		installments = append(installments, &models.Installment{
			ID:              uuid.New(),
			LoanID:          loan.ID,
			Number:          n,
			DueDate:         due,
			PrincipalAmount: principalShare,
			InterestAmount:  interestShare,
			TotalAmount:     totalShare,
			PaidAmount:      decimal.Zero,
			Status:          models.InstallmentStatusPending,
		})
	}
	return installments, nil
}

// PrepareLoan validates terms, resolves the rate (deriving it from a target interest
// amount when one is given) and generates the installments of a new active loan.
func PrepareLoan(terms models.LoanTerms, now time.Time) (*models.Loan, []*models.Installment, error) {
	loan := &models.Loan{
		ID:               uuid.New(),
		BorrowerName:     terms.BorrowerName,
		Notes:            terms.Notes,
		Principal:        terms.Principal,
		InterestRate:     terms.InterestRate,
		InterestType:     terms.InterestType,
		StartDate:        terms.StartDate,
		EndDate:          terms.EndDate,
		Frequency:        terms.Frequency,
		InstallmentCount: terms.InstallmentCount,
		Status:           models.LoanStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if loan.InterestType == "" {
		loan.InterestType = models.InterestTypeSimple
	}
	if err := validateLoan(loan); err != nil {
		return nil, nil, err
	}

	if terms.InterestAmount.Valid {
		if terms.InterestAmount.Decimal.IsNegative() {
			return nil, nil, fmt.Errorf("%w: interest amount must not be negative", apperrors.ErrInvalidInput)
		}
		months := interest.MonthsBetween(loan.StartDate, loan.EndDate)
		rate, err := interest.ImpliedRate(loan.Principal, terms.InterestAmount.Decimal, loan.InterestType, months)
		if err != nil {
			return nil, nil, err
		}
		loan.InterestRate = rate

		// The entered amount is the figure of record; the derived rate may not reproduce
		// it to the last digit.
		installments, err := split(loan, terms.InterestAmount.Decimal)
		if err != nil {
			return nil, nil, err
		}
		return loan, installments, nil
	}

	installments, err := Generate(loan)
	if err != nil {
		return nil, nil, err
	}
	return loan, installments, nil
}

func validateLoan(loan *models.Loan) error {
	if loan == nil {
		return fmt.Errorf("%w: loan is nil", apperrors.ErrInvalidInput)
	}
	if !loan.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", apperrors.ErrInvalidInput, loan.Principal)
	}
	if loan.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative, got %s", apperrors.ErrInvalidInput, loan.InterestRate)
	}
	if !loan.InterestType.Valid() {
		return fmt.Errorf("%w: unknown interest type %q", apperrors.ErrInvalidInput, loan.InterestType)
	}
	if loan.InstallmentCount < 1 || loan.InstallmentCount > MaxInstallmentCount {
		return fmt.Errorf("%w: installment count must be between 1 and %d, got %d", apperrors.ErrInvalidInput, MaxInstallmentCount, loan.InstallmentCount)
	}
	if loan.StartDate.IsZero() || loan.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", apperrors.ErrInvalidInput)
	}
	if loan.EndDate.Before(loan.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s", apperrors.ErrInvalidInput,
			loan.EndDate.Format(interest.DateLayout), loan.StartDate.Format(interest.DateLayout))
	}
	if _, err := IntervalDays(loan.Frequency); err != nil {
		return err
	}
	return nil
}
