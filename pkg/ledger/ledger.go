package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/events"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/logging"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/metrics"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/schedule"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Ledger handles the business logic for loans, installments and payments on top of a
// Storage. Writes to one loan are serialized; different loans proceed in parallel.
type Ledger struct {
	storage   store.Storage
	locks     *loanLocks
	publisher events.Publisher
	metrics   metrics.Collector
	logger    *logging.Logger
	clock     func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithMetrics(c metrics.Collector) Option {
	return func(l *Ledger) { l.metrics = c }
}

func WithLogger(logger *logging.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage:   s,
		locks:     newLoanLocks(),
		publisher: events.NoOpPublisher{},
		metrics:   metrics.NoOpCollector{},
		logger:    logging.L(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("ledger")
	return l
}

// PaymentInput is what a caller records against an installment. The principal/interest
// split is the caller's choice and is stored as given.
type PaymentInput struct {
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PaymentDate      time.Time       `json:"payment_date"`
	Method           string          `json:"method"`
	Notes            string          `json:"notes"`
}

// RefreshResult counts the rows a status refresh changed.
type RefreshResult struct {
	Installments int `json:"installments"`
	Loans        int `json:"loans"`
}

// CreateLoan validates terms, generates the installments and stores both atomically.
func (l *Ledger) CreateLoan(terms models.LoanTerms) (details *models.LoanDetails, err error) {
	defer l.observe("create_loan", l.clock(), &err)

	loan, installments, err := schedule.PrepareLoan(terms, l.clock())
	if err != nil {
		return nil, err
	}

	if err := l.storage.CreateLoan(loan, installments); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	l.metrics.RecordLoanCreated(len(installments))
	l.logger.Info("loan created",
		zap.String("op", "ledger.CreateLoan"),
		zap.String("loan_id", loan.ID.String()),
		zap.String("principal", loan.Principal.String()),
		zap.String("interest_amount", loan.InterestAmount.StringFixed(2)),
		zap.Int("installments", len(installments)),
	)
	l.publish(events.Event{
		Type:      events.TypeLoanCreated,
		LoanID:    loan.ID,
		Amount:    loan.Principal,
		Status:    string(loan.Status),
		Timestamp: loan.CreatedAt,
	})

	return &models.LoanDetails{Loan: loan, Installments: installments, Payments: []*models.Payment{}}, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetLoanDetails retrieves a loan with its installments and payments.
func (l *Ledger) GetLoanDetails(id uuid.UUID) (*models.LoanDetails, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	installments, err := l.storage.GetInstallmentsForLoan(id)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.GetPaymentsForLoan(id)
	if err != nil {
		return nil, err
	}
	return &models.LoanDetails{Loan: loan, Installments: installments, Payments: payments}, nil
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	return l.storage.GetAllLoans()
}

// DeleteLoan deletes a loan together with its installments and payments.
func (l *Ledger) DeleteLoan(id uuid.UUID) (err error) {
	defer l.observe("delete_loan", l.clock(), &err)

	unlock := l.locks.lock(id)
	defer unlock()

	if err := l.storage.DeleteLoan(id); err != nil {
		return err
	}
	l.publish(events.Event{Type: events.TypeLoanDeleted, LoanID: id, Timestamp: l.clock()})
	return nil
}

// SetLoanStatus applies a manual status change, e.g. marking a loan defaulted. A loan can
// only be marked completed when every installment is paid.
func (l *Ledger) SetLoanStatus(id uuid.UUID, status models.LoanStatus) (loan *models.Loan, err error) {
	defer l.observe("set_loan_status", l.clock(), &err)

	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown loan status %q", apperrors.ErrInvalidInput, status)
	}

	unlock := l.locks.lock(id)
	defer unlock()

	loan, err = l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if status == models.LoanStatusCompleted {
		installments, err := l.storage.GetInstallmentsForLoan(id)
		if err != nil {
			return nil, err
		}
		if !AllPaid(installments) {
			return nil, fmt.Errorf("%w: loan %s still has unpaid installments", apperrors.ErrConflict, id)
		}
	}
	if loan.Status == status {
		return loan, nil
	}

	loan.Status = status
	loan.UpdatedAt = l.clock()
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan status: %w", err)
	}
	l.publish(events.Event{Type: events.TypeLoanStatusChanged, LoanID: id, Status: string(status), Timestamp: loan.UpdatedAt})
	return loan, nil
}

// RecordPayment applies a payment to one installment of a loan. When it leaves every
// installment paid the loan becomes completed; no other loan transition happens here.
func (l *Ledger) RecordPayment(loanID, installmentID uuid.UUID, in PaymentInput) (payment *models.Payment, inst *models.Installment, err error) {
	defer l.observe("record_payment", l.clock(), &err)

	if !in.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: payment amount must be positive", apperrors.ErrInvalidInput)
	}
	if in.PrincipalPortion.IsNegative() || in.InterestPortion.IsNegative() {
		return nil, nil, fmt.Errorf("%w: payment portions must not be negative", apperrors.ErrInvalidInput)
	}

	unlock := l.locks.lock(loanID)
	defer unlock()

	now := l.clock()
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	installments, err := l.storage.GetInstallmentsForLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	inst = findInstallment(installments, installmentID)
	if inst == nil {
		return nil, nil, fmt.Errorf("installment %s of loan %s: %w", installmentID, loanID, apperrors.ErrNotFound)
	}

	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}
	payment = &models.Payment{
		ID:               uuid.New(),
		LoanID:           loanID,
		InstallmentID:    installmentID,
		Amount:           in.Amount,
		PrincipalPortion: in.PrincipalPortion,
		InterestPortion:  in.InterestPortion,
		PaymentDate:      paymentDate,
		Method:           in.Method,
		Notes:            in.Notes,
		CreatedAt:        now,
	}

	ApplyPayment(inst, payment, now)
	if inst.PaidAmount.GreaterThan(inst.TotalAmount) {
		l.logger.Warn("installment overpaid",
			zap.String("op", "ledger.RecordPayment"),
			zap.String("installment_id", installmentID.String()),
			zap.String("paid", inst.PaidAmount.String()),
			zap.String("total", inst.TotalAmount.String()),
		)
	}

	completed := false
	if loan.Status != models.LoanStatusCompleted && AllPaid(installments) {
		loan.Status = models.LoanStatusCompleted
		completed = true
	}
	loan.UpdatedAt = now

	if err := l.storage.CommitPayment(loan, inst, payment); err != nil {
		return nil, nil, fmt.Errorf("failed to store payment: %w", err)
	}

	l.logger.Info("payment recorded",
		zap.String("op", "ledger.RecordPayment"),
		zap.String("loan_id", loanID.String()),
		zap.Int("installment", inst.Number),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", string(inst.Status)),
	)
	l.publish(events.Event{
		Type:          events.TypePaymentRecorded,
		LoanID:        loanID,
		InstallmentID: &inst.ID,
		PaymentID:     &payment.ID,
		Amount:        payment.Amount,
		Status:        string(inst.Status),
		Timestamp:     now,
	})
	if completed {
		l.publish(events.Event{Type: events.TypeLoanStatusChanged, LoanID: loanID, Status: string(loan.Status), Timestamp: now})
	}
	return payment, inst, nil
}

// DeletePayment removes a payment and takes its amount back off the installment. A loan
// that was completed and is no longer fully paid returns to active.
func (l *Ledger) DeletePayment(paymentID uuid.UUID) (inst *models.Installment, err error) {
	defer l.observe("delete_payment", l.clock(), &err)

	payment, err := l.storage.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(payment.LoanID)
	defer unlock()

	// A concurrent delete may have won the lock first.
	payment, err = l.storage.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}

	now := l.clock()
	loan, err := l.storage.GetLoan(payment.LoanID)
	if err != nil {
		return nil, err
	}
	installments, err := l.storage.GetInstallmentsForLoan(payment.LoanID)
	if err != nil {
		return nil, err
	}
	inst = findInstallment(installments, payment.InstallmentID)
	if inst == nil {
		return nil, fmt.Errorf("installment %s of payment %s: %w", payment.InstallmentID, paymentID, apperrors.ErrNotFound)
	}

	payments, err := l.storage.GetPaymentsForLoan(payment.LoanID)
	if err != nil {
		return nil, err
	}
	ReversePayment(inst, payment, payments, now)

	reopened := false
	if loan.Status == models.LoanStatusCompleted && !AllPaid(installments) {
		loan.Status = models.LoanStatusActive
		reopened = true
	}
	loan.UpdatedAt = now

	if err := l.storage.RevertPayment(loan, inst, paymentID); err != nil {
		return nil, fmt.Errorf("failed to delete payment: %w", err)
	}

	l.logger.Info("payment deleted",
		zap.String("op", "ledger.DeletePayment"),
		zap.String("loan_id", loan.ID.String()),
		zap.Int("installment", inst.Number),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", string(inst.Status)),
	)
	l.publish(events.Event{
		Type:          events.TypePaymentDeleted,
		LoanID:        loan.ID,
		InstallmentID: &inst.ID,
		PaymentID:     &paymentID,
		Amount:        payment.Amount,
		Status:        string(inst.Status),
		Timestamp:     now,
	})
	if reopened {
		l.publish(events.Event{Type: events.TypeLoanStatusChanged, LoanID: loan.ID, Status: string(loan.Status), Timestamp: now})
	}
	return inst, nil
}

// RefreshStatuses re-derives every installment and loan status at now and saves the rows
// that changed. Stored statuses drift as due dates pass; this brings them back in line.
func (l *Ledger) RefreshStatuses(now time.Time) (result RefreshResult, err error) {
	started := l.clock()
	defer func() {
		l.metrics.RecordRefresh(result.Installments, result.Loans, l.clock().Sub(started))
	}()

	loans, err := l.storage.GetAllLoans()
	if err != nil {
		return result, fmt.Errorf("failed to list loans: %w", err)
	}

	for _, loan := range loans {
		changedInstallments, loanChanged, err := l.refreshLoan(loan.ID, now)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue // deleted since listing
			}
			l.logger.Error("status refresh failed",
				zap.String("op", "ledger.RefreshStatuses"),
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Installments += changedInstallments
		if loanChanged {
			result.Loans++
		}
	}

	if result.Installments > 0 || result.Loans > 0 {
		l.logger.Info("statuses refreshed",
			zap.String("op", "ledger.RefreshStatuses"),
			zap.Int("installments", result.Installments),
			zap.Int("loans", result.Loans),
		)
	}
	return result, nil
}

func (l *Ledger) refreshLoan(loanID uuid.UUID, now time.Time) (int, bool, error) {
	unlock := l.locks.lock(loanID)
	defer unlock()

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return 0, false, err
	}
	installments, err := l.storage.GetInstallmentsForLoan(loanID)
	if err != nil {
		return 0, false, err
	}

	var changed []*models.Installment
	for _, inst := range installments {
		if status := DeriveStatus(inst, now); status != inst.Status {
			inst.Status = status
			changed = append(changed, inst)
		}
	}
	if len(changed) > 0 {
		if err := l.storage.UpdateInstallments(changed); err != nil {
			return 0, false, fmt.Errorf("failed to update installments: %w", err)
		}
	}

	status := DeriveLoanStatus(loan, installments, now)
	if status == loan.Status {
		return len(changed), false, nil
	}
	loan.Status = status
	loan.UpdatedAt = now
	if err := l.storage.UpdateLoan(loan); err != nil {
		return len(changed), false, fmt.Errorf("failed to update loan: %w", err)
	}
	l.publish(events.Event{Type: events.TypeLoanStatusChanged, LoanID: loanID, Status: string(status), Timestamp: now})
	return len(changed), true, nil
}

// Snapshot loads every loan, installment and payment, read consistently, for read-only
// aggregation.
func (l *Ledger) Snapshot() ([]*models.Loan, []*models.Installment, []*models.Payment, error) {
	return l.storage.Snapshot()
}

func (l *Ledger) publish(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()

	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Warn("failed to publish event",
			zap.String("op", "ledger.publish"),
			zap.String("type", string(event.Type)),
			zap.String("loan_id", event.LoanID.String()),
			zap.Error(err),
		)
	}
}

func (l *Ledger) observe(op string, started time.Time, err *error) {
	l.metrics.RecordOperation(op, apperrors.Classify(*err), l.clock().Sub(started))
}

func findInstallment(installments []*models.Installment, id uuid.UUID) *models.Installment {
	for _, inst := range installments {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// loanLocks hands out one mutex per loan ID. Entries are never removed; a mutex is a few
// bytes and loan IDs are not reused.
type loanLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLoanLocks() *loanLocks {
	return &loanLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *loanLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
