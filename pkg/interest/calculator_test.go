package interest

import (
	"testing"
	"time"

	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalInterest(t *testing.T) {
	tests := []struct {
		name      string
		principal float64
		rate      float64
		kind      models.InterestType
		months    float64
		expected  float64
	}{
		{"simple one year at 12%", 1200, 12, models.InterestTypeSimple, 12, 144},
		{"simple half year", 1000, 10, models.InterestTypeSimple, 6, 50},
		{"simple fractional months", 3000, 6, models.InterestTypeSimple, 1.5, 22.5},
		{"simple zero rate", 5000, 0, models.InterestTypeSimple, 24, 0},
		{"simple zero duration", 5000, 10, models.InterestTypeSimple, 0, 0},
		{"compound one year at 12%", 1000, 12, models.InterestTypeCompound, 12, 126.82503013196977},
		{"compound zero duration", 1000, 12, models.InterestTypeCompound, 0, 0},
		{"compound negative duration", 1000, 12, models.InterestTypeCompound, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TotalInterest(decimal.NewFromFloat(tt.principal), decimal.NewFromFloat(tt.rate), tt.kind, tt.months)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got.InexactFloat64(), 1e-6)
		})
	}
}

func TestTotalInterest_SimpleIsExact(t *testing.T) {
	got, err := TotalInterest(decimal.NewFromInt(1200), decimal.NewFromInt(12), models.InterestTypeSimple, 12)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(144)), "expected 144, got %s", got)
}

func TestTotalInterest_CompoundFractionalExponent(t *testing.T) {
	// 45 days is 1.5 months: the fractional power is kept, not rounded to whole months.
	got, err := TotalInterest(decimal.NewFromInt(1000), decimal.NewFromInt(12), models.InterestTypeCompound, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 15.0374, got.InexactFloat64(), 1e-4)
}

func TestTotalInterest_UnknownType(t *testing.T) {
	_, err := TotalInterest(decimal.NewFromInt(1000), decimal.NewFromInt(5), models.InterestType("daily"), 12)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestImpliedRate(t *testing.T) {
	rate, err := ImpliedRate(decimal.NewFromInt(1200), decimal.NewFromInt(144), models.InterestTypeSimple, 12)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(12)), "expected 12, got %s", rate)

	rate, err = ImpliedRate(decimal.NewFromInt(1000), decimal.NewFromFloat(126.82503013196977), models.InterestTypeCompound, 12)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, rate.InexactFloat64(), 1e-6)
}

func TestImpliedRate_RoundTrip(t *testing.T) {
	for _, kind := range []models.InterestType{models.InterestTypeSimple, models.InterestTypeCompound} {
		for _, months := range []float64{0.5, 3, 12, 37.4} {
			principal := decimal.NewFromInt(2500)
			amount, err := TotalInterest(principal, decimal.NewFromFloat(9.5), kind, months)
			require.NoError(t, err)

			rate, err := ImpliedRate(principal, amount, kind, months)
			require.NoError(t, err)
			assert.InDelta(t, 9.5, rate.InexactFloat64(), 1e-6, "%s over %v months", kind, months)
		}
	}
}

func TestImpliedRate_DivisionByZero(t *testing.T) {
	_, err := ImpliedRate(decimal.Zero, decimal.NewFromInt(10), models.InterestTypeSimple, 12)
	assert.ErrorIs(t, err, apperrors.ErrDivisionByZero)

	_, err = ImpliedRate(decimal.NewFromInt(100), decimal.NewFromInt(10), models.InterestTypeCompound, 0)
	assert.ErrorIs(t, err, apperrors.ErrDivisionByZero)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestImpliedRate_CompoundNegativeRatio(t *testing.T) {
	_, err := ImpliedRate(decimal.NewFromInt(100), decimal.NewFromInt(-150), models.InterestTypeCompound, 12)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDurationInMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected float64
	}{
		{"360 days", "2024-01-01", "2024-12-26", 12},
		{"reversed dates", "2024-12-26", "2024-01-01", 12},
		{"same day", "2024-03-15", "2024-03-15", 0},
		{"45 days", "2024-01-01", "2024-02-15", 1.5},
		{"rfc3339", "2024-01-01T00:00:00Z", "2024-01-31T00:00:00Z", 1},
		{"partial day", "2024-01-01T00:00:00Z", "2024-01-01T12:00:00Z", 0.5 / 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DurationInMonths(tt.start, tt.end)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestDurationInMonths_Malformed(t *testing.T) {
	_, err := DurationInMonths("2024-13-01", "2024-12-01")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = DurationInMonths("2024-01-01", "next tuesday")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMonthsBetween(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 3.0, MonthsBetween(start, start.AddDate(0, 0, 90)), 1e-9)
	// Calendar months do not matter: January to April is 91 days in a leap year.
	assert.InDelta(t, 91.0/30, MonthsBetween(start, start.AddDate(0, 3, 0)), 1e-9)
}
