package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/logging"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

const (
	loanColumns        = `id, borrower_name, notes, principal, interest_rate, interest_amount, interest_type, start_date, end_date, frequency, installment_count, status, created_at, updated_at`
	installmentColumns = `id, loan_id, number, due_date, principal_amount, interest_amount, total_amount, paid_amount, paid_date, status`
	paymentColumns     = `id, loan_id, installment_id, amount, principal_portion, interest_portion, payment_date, method, notes, created_at`
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore migrates the schema and opens the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	if err := RunMigrations(dataSourceName); err != nil {
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// PRAGMAs apply per connection, so keep exactly one.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	logging.L().Info("database ready", zap.String("op", "store.NewSQLiteStore"), zap.String("dsn", dataSourceName))
	return &SQLiteStore{db: db}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

// CreateLoan inserts a loan and all of its installments in one transaction.
func (s *SQLiteStore) CreateLoan(loan *models.Loan, installments []*models.Installment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.BorrowerName, loan.Notes, loan.Principal, loan.InterestRate, loan.InterestAmount, loan.InterestType,
		loan.StartDate, loan.EndDate, loan.Frequency, loan.InstallmentCount, loan.Status, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO installments (` + installmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare installment insert: %w", err)
	}
	defer stmt.Close()

	for _, inst := range installments {
		_, err := stmt.Exec(
			inst.ID.String(), inst.LoanID.String(), inst.Number, inst.DueDate, inst.PrincipalAmount, inst.InterestAmount,
			inst.TotalAmount, inst.PaidAmount, nullTime(inst.PaidDate), inst.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", inst.Number, err)
		}
	}

	return tx.Commit()
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan updates an existing loan in the database.
func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	return updateLoan(s.db, loan)
}

func updateLoan(e execer, loan *models.Loan) error {
	result, err := e.Exec(
		`UPDATE loans SET borrower_name = ?, notes = ?, principal = ?, interest_rate = ?, interest_amount = ?, interest_type = ?,
		start_date = ?, end_date = ?, frequency = ?, installment_count = ?, status = ?, updated_at = ? WHERE id = ?`,
		loan.BorrowerName, loan.Notes, loan.Principal, loan.InterestRate, loan.InterestAmount, loan.InterestType,
		loan.StartDate, loan.EndDate, loan.Frequency, loan.InstallmentCount, loan.Status, loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return expectOneRow(result, "loan", loan.ID)
}

// DeleteLoan removes a loan, its installments and its payments within a transaction.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.Exec(`DELETE FROM payments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated payments: %w", err)
	}
	if _, err = tx.Exec(`DELETE FROM installments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated installments: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if err := expectOneRow(result, "loan", id); err != nil {
		return err
	}

	return tx.Commit()
}

// GetAllLoans retrieves all loans, oldest first.
func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	return allLoans(s.db)
}

func allLoans(q querier) ([]*models.Loan, error) {
	rows, err := q.Query(`SELECT ` + loanColumns + ` FROM loans ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	loans := []*models.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// GetInstallmentsForLoan returns a loan's installments ordered by number.
func (s *SQLiteStore) GetInstallmentsForLoan(loanID uuid.UUID) ([]*models.Installment, error) {
	rows, err := s.db.Query(`SELECT `+installmentColumns+` FROM installments WHERE loan_id = ? ORDER BY number ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for loan %s: %w", loanID, err)
	}
	defer rows.Close()
	return scanInstallments(rows)
}

func allInstallments(q querier) ([]*models.Installment, error) {
	rows, err := q.Query(`SELECT ` + installmentColumns + ` FROM installments ORDER BY due_date ASC, loan_id ASC, number ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all installments: %w", err)
	}
	defer rows.Close()
	return scanInstallments(rows)
}

// UpdateInstallments saves the paid amount, paid date and status of each installment in
// one transaction.
func (s *SQLiteStore) UpdateInstallments(installments []*models.Installment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, inst := range installments {
		if err := updateInstallment(tx, inst); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func updateInstallment(e execer, inst *models.Installment) error {
	result, err := e.Exec(
		`UPDATE installments SET paid_amount = ?, paid_date = ?, status = ? WHERE id = ?`,
		inst.PaidAmount, nullTime(inst.PaidDate), inst.Status, inst.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return expectOneRow(result, "installment", inst.ID)
}

// GetPayment retrieves a payment by its ID.
func (s *SQLiteStore) GetPayment(id uuid.UUID) (*models.Payment, error) {
	row := s.db.QueryRow(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id.String())
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentsForLoan retrieves all payments for a given loan ID in the order they were made.
func (s *SQLiteStore) GetPaymentsForLoan(loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.db.Query(`SELECT `+paymentColumns+` FROM payments WHERE loan_id = ? ORDER BY payment_date ASC, created_at ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func allPayments(q querier) ([]*models.Payment, error) {
	rows, err := q.Query(`SELECT ` + paymentColumns + ` FROM payments ORDER BY payment_date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

// Snapshot reads every loan, installment and payment inside one transaction, so the three
// lists agree with each other even while payments are being written.
func (s *SQLiteStore) Snapshot() ([]*models.Loan, []*models.Installment, []*models.Payment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	loans, err := allLoans(tx)
	if err != nil {
		return nil, nil, nil, err
	}
	installments, err := allInstallments(tx)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := allPayments(tx)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to end snapshot: %w", err)
	}
	return loans, installments, payments, nil
}

// CommitPayment inserts the payment and saves the installment and loan it changed.
func (s *SQLiteStore) CommitPayment(loan *models.Loan, inst *models.Installment, payment *models.Payment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.InstallmentID.String(), payment.Amount, payment.PrincipalPortion,
		payment.InterestPortion, payment.PaymentDate, payment.Method, payment.Notes, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	if err := updateInstallment(tx, inst); err != nil {
		return err
	}
	if err := updateLoan(tx, loan); err != nil {
		return err
	}
	return tx.Commit()
}

// RevertPayment deletes the payment and saves the installment and loan it changed.
func (s *SQLiteStore) RevertPayment(loan *models.Loan, inst *models.Installment, paymentID uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM payments WHERE id = ?`, paymentID.String())
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if err := expectOneRow(result, "payment", paymentID); err != nil {
		return err
	}
	if err := updateInstallment(tx, inst); err != nil {
		return err
	}
	if err := updateLoan(tx, loan); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanLoan(row scanner) (*models.Loan, error) {
	var loan models.Loan
	var id string
	err := row.Scan(&id, &loan.BorrowerName, &loan.Notes, &loan.Principal, &loan.InterestRate, &loan.InterestAmount, &loan.InterestType,
		&loan.StartDate, &loan.EndDate, &loan.Frequency, &loan.InstallmentCount, &loan.Status, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if loan.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad loan id %q: %w", id, err)
	}
	return &loan, nil
}

func scanInstallment(row scanner) (*models.Installment, error) {
	var inst models.Installment
	var id, loanID string
	var paidDate sql.NullTime
	err := row.Scan(&id, &loanID, &inst.Number, &inst.DueDate, &inst.PrincipalAmount, &inst.InterestAmount,
		&inst.TotalAmount, &inst.PaidAmount, &paidDate, &inst.Status)
	if err != nil {
		return nil, err
	}
	if inst.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad installment id %q: %w", id, err)
	}
	if inst.LoanID, err = uuid.Parse(loanID); err != nil {
		return nil, fmt.Errorf("bad loan id %q: %w", loanID, err)
	}
	if paidDate.Valid {
		inst.PaidDate = &paidDate.Time
	}
	return &inst, nil
}

func scanInstallments(rows *sql.Rows) ([]*models.Installment, error) {
	installments := []*models.Installment{}
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return installments, nil
}

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	var id, loanID, instID string
	err := row.Scan(&id, &loanID, &instID, &p.Amount, &p.PrincipalPortion, &p.InterestPortion, &p.PaymentDate, &p.Method, &p.Notes, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *uuid.UUID
		src string
	}{{&p.ID, id}, {&p.LoanID, loanID}, {&p.InstallmentID, instID}} {
		if *f.dst, err = uuid.Parse(f.src); err != nil {
			return nil, fmt.Errorf("bad id %q: %w", f.src, err)
		}
	}
	return &p, nil
}

func scanPayments(rows *sql.Rows) ([]*models.Payment, error) {
	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

func expectOneRow(result sql.Result, kind string, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
