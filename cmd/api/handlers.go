package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/apperrors"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/interest"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/ledger"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/logging"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/models"
	"github.com/newturnco/rork-loan-manager-plus-sub000/pkg/portfolio"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Server holds the ledger and the dashboard built on top of it.
type Server struct {
	ledger    *ledger.Ledger
	dashboard *portfolio.Service
	logger    *logging.Logger
	clock     func() time.Time
}

func NewServer(l *ledger.Ledger, dashboard *portfolio.Service, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Server{ledger: l, dashboard: dashboard, logger: logger.Named("api"), clock: time.Now}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/status", s.setLoanStatusHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}/installments/{installmentId}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/payments/{id}", s.deletePaymentHandler).Methods("DELETE")
	router.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")
	router.HandleFunc("/interest/quote", s.quoteHandler).Methods("GET")
	return router
}

type createLoanRequest struct {
	BorrowerName     string              `json:"borrower_name"`
	Notes            string              `json:"notes"`
	Principal        decimal.Decimal     `json:"principal"`
	InterestRate     decimal.Decimal     `json:"interest_rate"`
	InterestAmount   decimal.NullDecimal `json:"interest_amount"`
	InterestType     models.InterestType `json:"interest_type"`
	StartDate        string              `json:"start_date"`
	EndDate          string              `json:"end_date"`
	Frequency        models.Frequency    `json:"frequency"`
	InstallmentCount int                 `json:"installment_count"`
}

func (req createLoanRequest) terms() (models.LoanTerms, error) {
	start, err := interest.ParseDate(req.StartDate)
	if err != nil {
		return models.LoanTerms{}, err
	}
	end, err := interest.ParseDate(req.EndDate)
	if err != nil {
		return models.LoanTerms{}, err
	}
	return models.LoanTerms{
		BorrowerName:     req.BorrowerName,
		Notes:            req.Notes,
		Principal:        req.Principal,
		InterestRate:     req.InterestRate,
		InterestAmount:   req.InterestAmount,
		InterestType:     req.InterestType,
		StartDate:        start,
		EndDate:          end,
		Frequency:        req.Frequency,
		InstallmentCount: req.InstallmentCount,
	}, nil
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	terms, err := req.terms()
	if err != nil {
		s.writeError(w, "create loan", err)
		return
	}

	details, err := s.ledger.CreateLoan(terms)
	if err != nil {
		s.writeError(w, "create loan", err)
		return
	}

	writeJSON(w, http.StatusCreated, details)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	details, err := s.ledger.GetLoanDetails(loanID)
	if err != nil {
		s.writeError(w, "get loan", err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans()
	if err != nil {
		s.writeError(w, "list loans", err)
		return
	}

	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.ledger.DeleteLoan(loanID); err != nil {
		s.writeError(w, "delete loan", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setLoanStatusHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.LoanStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.SetLoanStatus(loanID, req.Status)
	if err != nil {
		s.writeError(w, "set loan status", err)
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	installmentID, ok := pathID(w, r, "installmentId")
	if !ok {
		return
	}

	var req struct {
		Amount           decimal.Decimal `json:"amount"`
		PrincipalPortion decimal.Decimal `json:"principal_portion"`
		InterestPortion  decimal.Decimal `json:"interest_portion"`
		PaymentDate      string          `json:"payment_date"`
		Method           string          `json:"method"`
		Notes            string          `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := ledger.PaymentInput{
		Amount:           req.Amount,
		PrincipalPortion: req.PrincipalPortion,
		InterestPortion:  req.InterestPortion,
		Method:           req.Method,
		Notes:            req.Notes,
	}
	if req.PaymentDate != "" {
		date, err := interest.ParseDate(req.PaymentDate)
		if err != nil {
			s.writeError(w, "record payment", err)
			return
		}
		in.PaymentDate = date
	}

	payment, inst, err := s.ledger.RecordPayment(loanID, installmentID, in)
	if err != nil {
		s.writeError(w, "record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Payment     *models.Payment     `json:"payment"`
		Installment *models.Installment `json:"installment"`
	}{payment, inst})
}

func (s *Server) deletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	inst, err := s.ledger.DeletePayment(paymentID)
	if err != nil {
		s.writeError(w, "delete payment", err)
		return
	}

	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	if v := r.URL.Query().Get("now"); v != "" {
		parsed, err := interest.ParseDate(v)
		if err != nil {
			s.writeError(w, "dashboard", err)
			return
		}
		now = parsed
	}

	d, err := s.dashboard.Dashboard(now)
	if err != nil {
		s.writeError(w, "dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

type quoteResponse struct {
	Months         float64         `json:"months"`
	InterestType   string          `json:"interest_type"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// quoteHandler converts between a rate and a total interest amount over a date range, the
// same way loans are priced. Pass rate to get the amount, or amount to get the rate.
func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	principal, err := decimal.NewFromString(q.Get("principal"))
	if err != nil {
		s.writeError(w, "quote", fmt.Errorf("%w: principal: %v", apperrors.ErrInvalidInput, err))
		return
	}
	kind := models.InterestType(q.Get("type"))
	if kind == "" {
		kind = models.InterestTypeSimple
	}
	months, err := interest.DurationInMonths(q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeError(w, "quote", err)
		return
	}

	resp := quoteResponse{Months: months, InterestType: string(kind)}
	switch {
	case q.Get("amount") != "":
		amount, err := decimal.NewFromString(q.Get("amount"))
		if err != nil {
			s.writeError(w, "quote", fmt.Errorf("%w: amount: %v", apperrors.ErrInvalidInput, err))
			return
		}
		rate, err := interest.ImpliedRate(principal, amount, kind, months)
		if err != nil {
			s.writeError(w, "quote", err)
			return
		}
		resp.InterestRate, resp.InterestAmount = rate, amount
	case q.Get("rate") != "":
		rate, err := decimal.NewFromString(q.Get("rate"))
		if err != nil {
			s.writeError(w, "quote", fmt.Errorf("%w: rate: %v", apperrors.ErrInvalidInput, err))
			return
		}
		amount, err := interest.TotalInterest(principal, rate, kind, months)
		if err != nil {
			s.writeError(w, "quote", err)
			return
		}
		resp.InterestRate, resp.InterestAmount = rate, amount
	default:
		s.writeError(w, "quote", fmt.Errorf("%w: one of rate or amount is required", apperrors.ErrInvalidInput))
		return
	}
	resp.TotalAmount = principal.Add(resp.InterestAmount)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, action string, err error) {
	log := s.logger.With(zap.String("action", action), zap.Error(err))
	status := apperrors.HTTPStatus(err)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed")
		http.Error(w, fmt.Sprintf("Failed to %s", action), status)
		return
	case apperrors.IsInvalidInput(err):
		log.Debug("request rejected")
	}
	http.Error(w, err.Error(), status)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid %s", name), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
