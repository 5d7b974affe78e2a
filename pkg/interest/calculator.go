// Package interest computes total interest for a principal, rate and duration under the
// simple and compound conventions, and the inverse: the rate implied by an interest amount.
//
// Durations are measured in coarse months of exactly 30 days. The installment generator
// and any rate/amount recalculation must use the same convention, so both go through
// DurationInMonths / MonthsBetween.
package interest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	// MonthsPerYear converts an annual rate into a monthly one.
	MonthsPerYear = 12

	// PercentageMultiplier converts a percent into a fraction.
	PercentageMultiplier = 100

	// DaysPerMonth is the fixed month length of the duration model.
	DaysPerMonth = 30

	// DateLayout is the ISO-8601 calendar date accepted for loan dates.
	DateLayout = "2006-01-02"
)

var monthlyDivisor = decimal.NewFromInt(PercentageMultiplier * MonthsPerYear)

// TotalInterest returns the interest accrued on principal at annualRatePercent over months.
//
// Simple interest is principal * rate * months / 1200. Compound interest compounds monthly:
// principal * (1 + rate/1200)^months - principal. Months may be fractional; the fractional
// exponent is intended. A non-positive duration yields zero interest.
func TotalInterest(principal, annualRatePercent decimal.Decimal, t models.InterestType, months float64) (decimal.Decimal, error) {
	if !t.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown interest type %q", apperrors.ErrInvalidInput, t)
	}
	if months <= 0 {
		return decimal.Zero, nil
	}

	if t == models.InterestTypeSimple {
		return principal.Mul(annualRatePercent).Mul(decimal.NewFromFloat(months)).Div(monthlyDivisor), nil
	}

	p := principal.InexactFloat64()
	growth := math.Pow(1+annualRatePercent.InexactFloat64()/(PercentageMultiplier*MonthsPerYear), months)
	return fromFloat(p*growth - p)
}

// ImpliedRate is the closed-form inverse of TotalInterest: the annual percent rate that
// produces interestAmount on principal over months.
//
// A zero principal or zero duration returns apperrors.ErrDivisionByZero rather than NaN.
func ImpliedRate(principal, interestAmount decimal.Decimal, t models.InterestType, months float64) (decimal.Decimal, error) {
	if !t.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown interest type %q", apperrors.ErrInvalidInput, t)
	}
	if principal.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: principal is zero", apperrors.ErrDivisionByZero)
	}
	if months == 0 {
		return decimal.Zero, fmt.Errorf("%w: duration is zero months", apperrors.ErrDivisionByZero)
	}

	if t == models.InterestTypeSimple {
		return interestAmount.Mul(monthlyDivisor).Div(principal.Mul(decimal.NewFromFloat(months))), nil
	}

	ratio := principal.Add(interestAmount).Div(principal).InexactFloat64()
	if ratio <= 0 {
		return decimal.Zero, fmt.Errorf("%w: interest %s wipes out principal %s", apperrors.ErrInvalidInput, interestAmount, principal)
	}
	monthly := math.Pow(ratio, 1/months) - 1
	return fromFloat(monthly * PercentageMultiplier * MonthsPerYear)
}

// DurationInMonths returns |end-start| in days divided by 30. Dates are ISO-8601, either
// plain calendar dates or RFC 3339 timestamps.
func DurationInMonths(startDate, endDate string) (float64, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return 0, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return 0, err
	}
	return MonthsBetween(start, end), nil
}

// MonthsBetween applies the 30-day month convention to two instants.
func MonthsBetween(start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	return math.Abs(days) / DaysPerMonth
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range []string{DateLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: malformed date %q", apperrors.ErrInvalidInput, value)
}

func fromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: interest is not a finite number", apperrors.ErrInvalidInput)
	}
	return decimal.NewFromFloat(v), nil
}
