// Package api exposes the HTTP surface: the bank validation proxy and the
// representative balance/ledger endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/colepay/colepay/internal/bank"
	"github.com/colepay/colepay/internal/domain"
	"github.com/colepay/colepay/internal/ledger"
	"github.com/colepay/colepay/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "colepay_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "colepay_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

const maxDescriptionLen = 500

// ProxyResponse is the envelope every endpoint answers with.
type ProxyResponse struct {
	Result  bool     `json:"result"`
	Content any      `json:"content"`
	Error   []string `json:"error"`
}

// BankGateway is the slice of the bank client the handlers use directly.
type BankGateway interface {
	Authenticate(ctx context.Context) (string, error)
	IsAuthenticated() bool
	GetBCVRate(ctx context.Context) (*bank.ExchangeRate, error)
	Ping(ctx context.Context) error
}

// CascadeRunner runs one payment claim through the validation cascade.
type CascadeRunner interface {
	Validate(ctx context.Context, claim bank.PaymentClaim) *bank.CascadeResult
}

// Reports is the slice of the store serving the financial reporting views.
type Reports interface {
	ListRepresentatives(ctx context.Context, f store.RepresentativeFilter) ([]domain.Representative, int, error)
	GetBalanceSummary(ctx context.Context) (*store.BalanceSummary, error)
	TopDebtors(ctx context.Context, limit int) ([]domain.Representative, error)
	TopCreditors(ctx context.Context, limit int) ([]domain.Representative, error)
	ListMonthlyActivity(ctx context.Context, months int) ([]store.MonthlyActivity, error)
	ListBalanceBuckets(ctx context.Context) ([]store.BalanceBucket, error)
	CountAlerts(ctx context.Context) (*store.FinancialAlerts, error)
}

// Handler bundles the HTTP handlers and their dependencies.
type Handler struct {
	ledger  *ledger.Service
	gateway BankGateway
	cascade CascadeRunner
	reports Reports
	log     zerolog.Logger
}

// NewHandler builds the handler set.
func NewHandler(ledgerSvc *ledger.Service, gateway BankGateway, cascade CascadeRunner, reports Reports, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:  ledgerSvc,
		gateway: gateway,
		cascade: cascade,
		reports: reports,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// Register wires all routes onto the router under /api/v1.
func (h *Handler) Register(r *mux.Router) {
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/bank/validate", h.BankValidateHandler).Methods(http.MethodPost)
	v1.HandleFunc("/bank/logon", h.BankLogOnHandler).Methods(http.MethodPost)
	v1.HandleFunc("/bank/health", h.BankHealthHandler).Methods(http.MethodGet)
	v1.HandleFunc("/bank/rate", h.BCVRateHandler).Methods(http.MethodGet)

	v1.HandleFunc("/representatives", h.ListRepresentativesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/representatives/top-debtors", h.TopDebtorsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/representatives/top-creditors", h.TopCreditorsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/representatives/{id}/balance", h.GetBalanceHandler).Methods(http.MethodGet)
	v1.HandleFunc("/representatives/{id}/deposits", h.DepositHandler).Methods(http.MethodPost)
	v1.HandleFunc("/representatives/{id}/withdrawals", h.WithdrawalHandler).Methods(http.MethodPost)
	v1.HandleFunc("/representatives/{id}/bank-payments", h.BankPaymentHandler).Methods(http.MethodPost)
	v1.HandleFunc("/representatives/{id}/transactions", h.TransactionHistoryHandler).Methods(http.MethodGet)

	v1.HandleFunc("/transactions/status", h.TransactionStatusHandler).Methods(http.MethodGet)
	v1.HandleFunc("/bank-payments/check", h.PaymentExistsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/statistics/financial", h.FinancialStatisticsHandler).Methods(http.MethodGet)
}

// HealthCheckHandler answers liveness probes.
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, "GET", "/health", map[string]string{"status": "ok"})
}

// BankValidateHandler runs a payment claim through the cascade and returns
// the verdict with the per-method breakdown. The cascade never fails as a
// whole, so this always answers 200 with a verdict.
func (h *Handler) BankValidateHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/bank/validate"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	var claim bank.PaymentClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		respondWithError(w, http.StatusBadRequest, "POST", endpoint, "Malformed JSON body")
		return
	}
	if msg, ok := validateClaim(claim); !ok {
		respondWithError(w, http.StatusBadRequest, "POST", endpoint, msg)
		return
	}

	result := h.cascade.Validate(r.Context(), claim)
	respondWithJSON(w, http.StatusOK, "POST", endpoint, result)
}

// BankLogOnHandler forces a session establishment with the bank.
func (h *Handler) BankLogOnHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/bank/logon"
	if _, err := h.gateway.Authenticate(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("bank logon failed")
		respondWithError(w, http.StatusBadGateway, "POST", endpoint, "Bank authentication failed")
		return
	}
	respondWithJSON(w, http.StatusOK, "POST", endpoint, map[string]bool{"authenticated": true})
}

// BankHealthHandler reports gateway connectivity and session state.
func (h *Handler) BankHealthHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/bank/health"
	status := map[string]any{
		"authenticated": h.gateway.IsAuthenticated(),
		"connected":     h.gateway.Ping(r.Context()) == nil,
		"timestamp":     time.Now().UTC(),
	}
	respondWithJSON(w, http.StatusOK, "GET", endpoint, status)
}

// BCVRateHandler proxies the central-bank reference rate of the day.
func (h *Handler) BCVRateHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/bank/rate"
	rate, err := h.gateway.GetBCVRate(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("BCV rate fetch failed")
		respondWithError(w, http.StatusBadGateway, "GET", endpoint, "Could not fetch exchange rate")
		return
	}
	respondWithJSON(w, http.StatusOK, "GET", endpoint, rate)
}

// GetBalanceHandler returns a representative's balance with their latest
// ledger entries.
func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/representatives/{id}/balance"
	id, ok := parseID(w, r, endpoint)
	if !ok {
		return
	}

	rep, err := h.ledger.Store().GetRepresentative(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	recent, err := h.ledger.Store().GetRecentTransactions(r.Context(), id, 10)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}

	respondWithJSON(w, http.StatusOK, "GET", endpoint, domain.RecentActivity{
		Representative: rep,
		Transactions:   recent,
	})
}

// entryRequest is the body of manual deposit/withdrawal calls.
type entryRequest struct {
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	PaymentMethod string  `json:"payment_method"`
	Reference     string  `json:"reference"`
	CreatedBy     string  `json:"created_by"`
}

// DepositHandler records a manual deposit.
func (h *Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.applyEntry(w, r, "/representatives/{id}/deposits", h.ledger.Deposit)
}

// WithdrawalHandler records a manual withdrawal. Insufficient balance is
// named explicitly, never reported as a generic failure.
func (h *Handler) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	h.applyEntry(w, r, "/representatives/{id}/withdrawals", h.ledger.Withdraw)
}

func (h *Handler) applyEntry(w http.ResponseWriter, r *http.Request, endpoint string,
	apply func(context.Context, uuid.UUID, ledger.EntryInput) (*ledger.ApplyResult, error)) {

	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	id, ok := parseID(w, r, endpoint)
	if !ok {
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "POST", endpoint, "Malformed JSON body")
		return
	}

	input, msg, ok := buildEntryInput(req)
	if !ok {
		respondWithError(w, http.StatusUnprocessableEntity, "POST", endpoint, msg)
		return
	}

	result, err := apply(r.Context(), id, input)
	if err != nil {
		h.respondLedgerError(w, endpoint, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, "POST", endpoint, result)
}

func buildEntryInput(req entryRequest) (ledger.EntryInput, string, bool) {
	if req.Amount <= 0 {
		return ledger.EntryInput{}, "Amount must be greater than 0", false
	}
	if len(req.Description) > maxDescriptionLen {
		return ledger.EntryInput{}, "Description exceeds 500 characters", false
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = domain.MethodCash
	}
	if !domain.ValidPaymentMethod(method) {
		return ledger.EntryInput{}, "Invalid payment method", false
	}

	input := ledger.EntryInput{
		Amount:        decimal.NewFromFloat(req.Amount),
		Description:   req.Description,
		PaymentMethod: method,
		Reference:     req.Reference,
	}
	if req.CreatedBy != "" {
		creator, err := uuid.Parse(req.CreatedBy)
		if err != nil {
			return ledger.EntryInput{}, "Invalid created_by identifier", false
		}
		input.CreatedBy = &creator
	}
	return input, "", true
}

// BankPaymentHandler is the full pipeline: cascade validation, duplicate
// detection, and atomic ledger application. Only a success verdict reaches
// the applier; a duplicate claim answers 409 with the prior registration.
func (h *Handler) BankPaymentHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/representatives/{id}/bank-payments"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	id, ok := parseID(w, r, endpoint)
	if !ok {
		return
	}

	var claim bank.PaymentClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		respondWithError(w, http.StatusBadRequest, "POST", endpoint, "Malformed JSON body")
		return
	}
	if msg, ok := validateClaim(claim); !ok {
		respondWithError(w, http.StatusBadRequest, "POST", endpoint, msg)
		return
	}

	validation := h.cascade.Validate(r.Context(), claim)
	if validation.Overall != bank.VerdictSuccess {
		respondWithJSON(w, http.StatusOK, "POST", endpoint, map[string]any{
			"applied":    false,
			"validation": validation,
		})
		return
	}

	method, _ := validation.ConfirmedBy()
	rawValidation, err := json.Marshal(validation)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "POST", endpoint, "Internal Server Error")
		return
	}

	result, err := h.ledger.RegisterBankPayment(r.Context(), id, ledger.BankPaymentInput{
		Amount:        decimal.NewFromFloat(claim.Amount),
		Reference:     claim.Reference,
		BankCode:      strconv.Itoa(claim.BankCode),
		AccountNumber: claim.AccountNumber,
		PhoneNumber:   claim.PhoneNumber,
		ClientID:      claim.ClientID,
		SourceMethod:  domain.SourceMethod(method),
		Validation:    rawValidation,
	})
	if err != nil {
		h.respondLedgerError(w, endpoint, err)
		return
	}

	if result.Duplicate != nil {
		respondWithJSON(w, http.StatusConflict, "POST", endpoint, map[string]any{
			"applied":   false,
			"duplicate": result.Duplicate,
		})
		return
	}

	respondWithJSON(w, http.StatusCreated, "POST", endpoint, map[string]any{
		"applied":    true,
		"payment":    result.Applied,
		"validation": validation,
	})
}

// TransactionHistoryHandler returns a representative's filtered history.
func (h *Handler) TransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/representatives/{id}/transactions"
	id, ok := parseID(w, r, endpoint)
	if !ok {
		return
	}

	// Representative must exist; an empty history is not a 404.
	if _, err := h.ledger.Store().GetRepresentative(r.Context(), id); err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}

	filter := ledger.TransactionFilter{
		Type:   domain.TransactionType(r.URL.Query().Get("type")),
		Status: domain.TransactionStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "GET", endpoint, "start_date must be RFC3339")
			return
		}
		filter.StartDate = &t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "GET", endpoint, "end_date must be RFC3339")
			return
		}
		filter.EndDate = &t
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.ledger.Store().ListTransactions(r.Context(), id, filter)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	if entries == nil {
		entries = []domain.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, "GET", endpoint, entries)
}

// TransactionStatusHandler looks up whether a bank payment was already
// registered, by reference and bank code.
func (h *Handler) TransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/transactions/status"
	reference := r.URL.Query().Get("reference")
	bankCode := r.URL.Query().Get("bank_code")
	if reference == "" || bankCode == "" {
		respondWithError(w, http.StatusBadRequest, "GET", endpoint, "reference and bank_code are required")
		return
	}

	entry, err := h.ledger.Store().FindByReferenceAndBank(r.Context(), reference, bankCode)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	if entry == nil {
		respondWithJSON(w, http.StatusOK, "GET", endpoint, map[string]any{"exists": false})
		return
	}
	respondWithJSON(w, http.StatusOK, "GET", endpoint, map[string]any{
		"exists":      true,
		"transaction": entry,
	})
}

// Helpers.

func validateClaim(claim bank.PaymentClaim) (string, bool) {
	if claim.AccountNumber == "" {
		return "AccountNumber is required", false
	}
	if claim.BankCode < 1 {
		return "BankCode must be a positive integer", false
	}
	if claim.Amount <= 0 {
		return "Amount must be greater than 0", false
	}
	return "", true
}

func parseID(w http.ResponseWriter, r *http.Request, endpoint string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, r.Method, endpoint, "Invalid representative identifier")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondLedgerError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, ledger.ErrRepresentativeNotFound):
		respondWithError(w, http.StatusNotFound, "POST", endpoint, "Representative not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		respondWithError(w, http.StatusUnprocessableEntity, "POST", endpoint, "Insufficient balance")
	case errors.Is(err, ledger.ErrInvalidAmount):
		respondWithError(w, http.StatusUnprocessableEntity, "POST", endpoint, "Amount must be greater than 0")
	default:
		h.log.Error().Err(err).Str("endpoint", endpoint).Msg("ledger operation failed")
		respondWithError(w, http.StatusInternalServerError, "POST", endpoint, "Internal Server Error")
	}
}

func (h *Handler) respondStoreError(w http.ResponseWriter, method, endpoint string, err error) {
	if errors.Is(err, ledger.ErrRepresentativeNotFound) {
		respondWithError(w, http.StatusNotFound, method, endpoint, "Representative not found")
		return
	}
	h.log.Error().Err(err).Str("endpoint", endpoint).Msg("store query failed")
	respondWithError(w, http.StatusInternalServerError, method, endpoint, "Internal Server Error")
}

func respondWithError(w http.ResponseWriter, code int, method, endpoint, message string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	writeJSON(w, code, ProxyResponse{Result: false, Content: nil, Error: []string{message}})
}

func respondWithJSON(w http.ResponseWriter, code int, method, endpoint string, content any) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	writeJSON(w, code, ProxyResponse{Result: true, Content: content, Error: []string{}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
