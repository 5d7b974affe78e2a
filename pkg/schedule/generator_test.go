package schedule

import (
	"math"
	"testing"
	"time"

	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newLoan(principal, rate float64, kind models.InterestType, days int, f models.Frequency, count int) *models.Loan {
	return &models.Loan{
		Principal:        decimal.NewFromFloat(principal),
		InterestRate:     decimal.NewFromFloat(rate),
		InterestType:     kind,
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, days),
		Frequency:        f,
		InstallmentCount: count,
		Status:           models.LoanStatusActive,
	}
}

func TestIntervalDays(t *testing.T) {
	expected := map[models.Frequency]int{
		models.FrequencyWeekly:    7,
		models.FrequencyBiweekly:  14,
		models.FrequencyMonthly:   30,
		models.FrequencyQuarterly: 90,
		models.FrequencyYearly:    365,
	}
	for f, days := range expected {
		got, err := IntervalDays(f)
		require.NoError(t, err)
		assert.Equal(t, days, got, string(f))
	}

	_, err := IntervalDays("fortnightly")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGenerate_TwelveMonthSimpleLoan(t *testing.T) {
	loan := newLoan(1200, 12, models.InterestTypeSimple, 360, models.FrequencyMonthly, 12)

	installments, err := Generate(loan)
	require.NoError(t, err)
	require.Len(t, installments, 12)

	assert.True(t, loan.InterestAmount.Equal(decimal.NewFromInt(144)), "total interest %s", loan.InterestAmount)
	assert.True(t, loan.TotalAmount().Equal(decimal.NewFromInt(1344)), "total amount %s", loan.TotalAmount())

	for i, inst := range installments {
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, start.AddDate(0, 0, 30*(i+1)), inst.DueDate)
		assert.True(t, inst.TotalAmount.Equal(decimal.NewFromInt(112)), "installment %d total %s", inst.Number, inst.TotalAmount)
		assert.True(t, inst.PrincipalAmount.Equal(decimal.NewFromInt(100)), "installment %d principal %s", inst.Number, inst.PrincipalAmount)
		assert.True(t, inst.InterestAmount.Equal(decimal.NewFromInt(12)), "installment %d interest %s", inst.Number, inst.InterestAmount)
		assert.True(t, inst.PaidAmount.IsZero())
		assert.Nil(t, inst.PaidDate)
		assert.Equal(t, models.InstallmentStatusPending, inst.Status)
		assert.Equal(t, loan.ID, inst.LoanID)
	}
}

func TestGenerate_SumAndEqualSplitInvariants(t *testing.T) {
	loans := []*models.Loan{
		newLoan(1000, 10, models.InterestTypeSimple, 100, models.FrequencyWeekly, 7),
		newLoan(1000, 12, models.InterestTypeCompound, 365, models.FrequencyMonthly, 11),
		newLoan(25000, 7.25, models.InterestTypeCompound, 1000, models.FrequencyQuarterly, 13),
		newLoan(333.33, 0, models.InterestTypeSimple, 45, models.FrequencyBiweekly, 3),
		newLoan(9999.99, 18, models.InterestTypeSimple, 730, models.FrequencyYearly, 2),
		newLoan(500, 5, models.InterestTypeSimple, 0, models.FrequencyMonthly, 1),
	}

	for _, loan := range loans {
		installments, err := Generate(loan)
		require.NoError(t, err)
		require.Len(t, installments, loan.InstallmentCount)

		sumTotal, sumPrincipal, sumInterest := decimal.Zero, decimal.Zero, decimal.Zero
		for _, inst := range installments {
			sumTotal = sumTotal.Add(inst.TotalAmount)
			sumPrincipal = sumPrincipal.Add(inst.PrincipalAmount)
			sumInterest = sumInterest.Add(inst.InterestAmount)

			first := installments[0]
			assert.True(t, inst.TotalAmount.Equal(first.TotalAmount))
			assert.True(t, inst.PrincipalAmount.Equal(first.PrincipalAmount))
			assert.True(t, inst.InterestAmount.Equal(first.InterestAmount))
			assert.InDelta(t, inst.TotalAmount.InexactFloat64(),
				inst.PrincipalAmount.Add(inst.InterestAmount).InexactFloat64(), 1e-6)
		}

		assert.InDelta(t, loan.Principal.Add(loan.InterestAmount).InexactFloat64(), sumTotal.InexactFloat64(), 1e-6)
		assert.InDelta(t, loan.Principal.InexactFloat64(), sumPrincipal.InexactFloat64(), 1e-6)
		assert.InDelta(t, loan.InterestAmount.InexactFloat64(), sumInterest.InexactFloat64(), 1e-6)
	}
}

func TestGenerate_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Loan)
	}{
		{"zero principal", func(l *models.Loan) { l.Principal = decimal.Zero }},
		{"negative principal", func(l *models.Loan) { l.Principal = decimal.NewFromInt(-5) }},
		{"negative rate", func(l *models.Loan) { l.InterestRate = decimal.NewFromInt(-1) }},
		{"zero installments", func(l *models.Loan) { l.InstallmentCount = 0 }},
		{"too many installments", func(l *models.Loan) { l.InstallmentCount = MaxInstallmentCount + 1 }},
		{"huge installment count", func(l *models.Loan) { l.InstallmentCount = math.MaxInt }},
		{"unknown frequency", func(l *models.Loan) { l.Frequency = "daily" }},
		{"unknown interest type", func(l *models.Loan) { l.InterestType = "flat" }},
		{"missing start date", func(l *models.Loan) { l.StartDate = time.Time{} }},
		{"end before start", func(l *models.Loan) { l.EndDate = l.StartDate.AddDate(0, 0, -1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newLoan(1200, 12, models.InterestTypeSimple, 360, models.FrequencyMonthly, 12)
			tt.mutate(loan)

			installments, err := Generate(loan)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Nil(t, installments)
		})
	}

	_, err := Generate(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPrepareLoan_FromRate(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	loan, installments, err := PrepareLoan(models.LoanTerms{
		BorrowerName:     "Ana",
		Principal:        decimal.NewFromInt(1200),
		InterestRate:     decimal.NewFromInt(12),
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, 360),
		Frequency:        models.FrequencyMonthly,
		InstallmentCount: 12,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.InterestTypeSimple, loan.InterestType)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.Equal(t, now, loan.CreatedAt)
	assert.True(t, loan.InterestAmount.Equal(decimal.NewFromInt(144)))
	assert.Len(t, installments, 12)
}

func TestPrepareLoan_FromInterestAmount(t *testing.T) {
	loan, installments, err := PrepareLoan(models.LoanTerms{
		Principal:        decimal.NewFromInt(1200),
		InterestAmount:   decimal.NewNullDecimal(decimal.NewFromInt(144)),
		InterestType:     models.InterestTypeSimple,
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, 360),
		Frequency:        models.FrequencyMonthly,
		InstallmentCount: 12,
	}, start)
	require.NoError(t, err)

	assert.True(t, loan.InterestRate.Equal(decimal.NewFromInt(12)), "derived rate %s", loan.InterestRate)
	assert.True(t, loan.InterestAmount.Equal(decimal.NewFromInt(144)), "interest amount %s", loan.InterestAmount)
	assert.True(t, installments[0].TotalAmount.Equal(decimal.NewFromInt(112)), "total share %s", installments[0].TotalAmount)

	loan, _, err = PrepareLoan(models.LoanTerms{
		Principal:        decimal.NewFromInt(1000),
		InterestAmount:   decimal.NewNullDecimal(decimal.NewFromInt(150)),
		InterestType:     models.InterestTypeCompound,
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, 400),
		Frequency:        models.FrequencyMonthly,
		InstallmentCount: 4,
	}, start)
	require.NoError(t, err)
	assert.True(t, loan.InterestAmount.Equal(decimal.NewFromInt(150)), "interest amount %s", loan.InterestAmount)
}

func TestGenerate_MaxInstallmentCount(t *testing.T) {
	loan := newLoan(1000, 5, models.InterestTypeSimple, 7*MaxInstallmentCount, models.FrequencyWeekly, MaxInstallmentCount)

	installments, err := Generate(loan)
	require.NoError(t, err)
	assert.Len(t, installments, MaxInstallmentCount)
}

func TestDueDate_OutOfRange(t *testing.T) {
	for _, n := range []int{0, -1, MaxInstallmentCount + 1, math.MaxInt} {
		_, err := DueDate(start, models.FrequencyYearly, n)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "n=%d", n)
	}
}

func TestPrepareLoan_KeepsEnteredInterestAmount(t *testing.T) {
	entered := decimal.NewFromInt(100)
	loan, installments, err := PrepareLoan(models.LoanTerms{
		Principal:        decimal.NewFromInt(1000),
		InterestAmount:   decimal.NewNullDecimal(entered),
		InterestType:     models.InterestTypeSimple,
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, 200),
		Frequency:        models.FrequencyMonthly,
		InstallmentCount: 4,
	}, start)
	require.NoError(t, err)

	assert.True(t, loan.InterestAmount.Equal(entered), "interest amount %s", loan.InterestAmount)
	assert.True(t, installments[0].InterestAmount.Equal(decimal.NewFromInt(25)), "interest share %s", installments[0].InterestAmount)
	assert.True(t, installments[0].TotalAmount.Equal(decimal.NewFromInt(275)), "total share %s", installments[0].TotalAmount)
}

func TestPrepareLoan_InterestAmountWithZeroDuration(t *testing.T) {
	_, _, err := PrepareLoan(models.LoanTerms{
		Principal:        decimal.NewFromInt(1000),
		InterestAmount:   decimal.NewNullDecimal(decimal.NewFromInt(50)),
		InterestType:     models.InterestTypeSimple,
		StartDate:        start,
		EndDate:          start,
		Frequency:        models.FrequencyWeekly,
		InstallmentCount: 4,
	}, start)
	assert.ErrorIs(t, err, apperrors.ErrDivisionByZero)
}

func TestPrepareLoan_NegativeInterestAmount(t *testing.T) {
	_, _, err := PrepareLoan(models.LoanTerms{
		Principal:        decimal.NewFromInt(1000),
		InterestAmount:   decimal.NewNullDecimal(decimal.NewFromInt(-50)),
		StartDate:        start,
		EndDate:          start.AddDate(0, 0, 60),
		Frequency:        models.FrequencyWeekly,
		InstallmentCount: 4,
	}, start)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
