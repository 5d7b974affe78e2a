package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/shopspring/decimal"
)

// ApplyPayment adds payment to the installment's paid amount, stamps the paid date and
// re-derives the status. Overpayment is not rejected here.
func ApplyPayment(inst *models.Installment, payment *models.Payment, now time.Time) {
	inst.PaidAmount = inst.PaidAmount.Add(payment.Amount)
	paidDate := payment.PaymentDate
	inst.PaidDate = &paidDate
	inst.Status = DeriveStatus(inst, now)
}

// ReversePayment removes payment from the installment, flooring the paid amount at zero so
// a double delete can never drive it negative. The paid date falls back to the latest of
// the installment's other payments in others, or is cleared when nothing stays applied.
func ReversePayment(inst *models.Installment, payment *models.Payment, others []*models.Payment, now time.Time) {
	inst.PaidAmount = decimal.Max(decimal.Zero, inst.PaidAmount.Sub(payment.Amount))
	inst.PaidDate = nil
	if inst.PaidAmount.IsPositive() {
		inst.PaidDate = latestPaymentDate(inst.ID, payment.ID, others)
	}
	inst.Status = DeriveStatus(inst, now)
}

func latestPaymentDate(installmentID, excluding uuid.UUID, payments []*models.Payment) *time.Time {
	var latest *time.Time
	for _, p := range payments {
		if p.InstallmentID != installmentID || p.ID == excluding {
			continue
		}
		if latest == nil || p.PaymentDate.After(*latest) {
			d := p.PaymentDate
			latest = &d
		}
	}
	return latest
}
