package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/colepay/colepay/internal/ledger"
	"github.com/colepay/colepay/internal/store"
	"github.com/shopspring/decimal"
)

// representativeView decorates a representative with its derived debt
// standing for listing and ranking responses.
type representativeView struct {
	domain.Representative
	DebtAmount    decimal.Decimal `json:"debt_amount"`
	BalanceStatus string          `json:"balance_status"`
}

func viewOf(rep domain.Representative) representativeView {
	v := representativeView{Representative: rep, DebtAmount: decimal.Zero}
	switch {
	case rep.Balance.IsNegative():
		v.DebtAmount = rep.Balance.Abs()
		v.BalanceStatus = "debt"
	case rep.Balance.IsPositive():
		v.BalanceStatus = "credit"
	default:
		v.BalanceStatus = "zero"
	}
	return v
}

func viewsOf(reps []domain.Representative) []representativeView {
	views := make([]representativeView, 0, len(reps))
	for _, rep := range reps {
		views = append(views, viewOf(rep))
	}
	return views
}

// ListRepresentativesHandler returns a filtered, ordered page of
// representatives with the population-wide balance summary.
func (h *Handler) ListRepresentativesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/representatives"
	q := r.URL.Query()

	filter := store.RepresentativeFilter{
		Search:        q.Get("search"),
		BalanceStatus: q.Get("balance_status"),
		SortBy:        q.Get("sort_by"),
		SortOrder:     q.Get("sort_order"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	if raw := q.Get("min_balance"); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "GET", endpoint, "min_balance must be a decimal number")
			return
		}
		filter.MinBalance = &min
	}
	if raw := q.Get("max_balance"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "GET", endpoint, "max_balance must be a decimal number")
			return
		}
		filter.MaxBalance = &max
	}

	reps, total, err := h.reports.ListRepresentatives(r.Context(), filter)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	summary, err := h.reports.GetBalanceSummary(r.Context())
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}

	respondWithJSON(w, http.StatusOK, "GET", endpoint, map[string]any{
		"representatives": viewsOf(reps),
		"total":           total,
		"summary":         summary,
	})
}

// TopDebtorsHandler ranks representatives by deepest debt.
func (h *Handler) TopDebtorsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/representatives/top-debtors"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	debtors, err := h.reports.TopDebtors(r.Context(), limit)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	summary, err := h.reports.GetBalanceSummary(r.Context())
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}

	views := viewsOf(debtors)
	ranking := map[string]any{
		"total_debtors":     summary.WithDebt,
		"total_debt_amount": summary.TotalDebt,
		"average_debt":      averageOver(summary.TotalDebt, summary.WithDebt),
	}
	if len(views) > 0 {
		ranking["highest_debt"] = views[0].DebtAmount
		ranking["lowest_debt"] = views[len(views)-1].DebtAmount
	}

	respondWithJSON(w, http.StatusOK, "GET", endpoint, map[string]any{
		"debtors": views,
		"summary": ranking,
	})
}

// TopCreditorsHandler ranks representatives by largest positive balance.
func (h *Handler) TopCreditorsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/representatives/top-creditors"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	creditors, err := h.reports.TopCreditors(r.Context(), limit)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	summary, err := h.reports.GetBalanceSummary(r.Context())
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}

	views := viewsOf(creditors)
	ranking := map[string]any{
		"total_creditors":     summary.WithCredit,
		"total_credit_amount": summary.TotalCredit,
		"average_credit":      averageOver(summary.TotalCredit, summary.WithCredit),
	}
	if len(views) > 0 {
		ranking["highest_credit"] = views[0].Balance
		ranking["lowest_credit"] = views[len(views)-1].Balance
	}

	respondWithJSON(w, http.StatusOK, "GET", endpoint, map[string]any{
		"creditors": views,
		"summary":   ranking,
	})
}

// FinancialStatisticsHandler assembles the dashboard aggregates: population
// summary, balance distribution, six months of ledger traffic, and attention
// alerts.
func (h *Handler) FinancialStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/statistics/financial"

	summary, err := h.reports.GetBalanceSummary(r.Context())
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	buckets, err := h.reports.ListBalanceBuckets(r.Context())
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	monthly, err := h.reports.ListMonthlyActivity(r.Context(), 6)
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}
	alerts, err := h.reports.CountAlerts(r.Context())
	if err != nil {
		h.respondStoreError(w, "GET", endpoint, err)
		return
	}

	respondWithJSON(w, http.StatusOK, "GET", endpoint, map[string]any{
		"general":              summary,
		"balance_distribution": buckets,
		"monthly_transactions": monthly,
		"alerts":               alerts,
		"calculated_at":        time.Now().UTC(),
	})
}

// PaymentExistsHandler is the pre-flight duplicate check: it runs the same
// heuristics the applier uses, without touching the ledger, so callers can
// warn before submitting a claim.
func (h *Handler) PaymentExistsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/bank-payments/check"
	q := r.URL.Query()

	reference := q.Get("reference")
	bankCode := q.Get("bank_code")
	if reference == "" || bankCode == "" {
		respondWithError(w, http.StatusBadRequest, "GET", endpoint, "reference and bank_code are required")
		return
	}

	claim := ledger.BankPaymentClaim{
		Reference:     reference,
		BankCode:      bankCode,
		AccountNumber: q.Get("account_number"),
		PhoneNumber:   q.Get("phone_number"),
	}
	if raw := q.Get("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "GET", endpoint, "amount must be a decimal number")
			return
		}
		claim.Amount = amount
	}

	check := h.ledger.CheckDuplicate(r.Context(), claim)
	respondWithJSON(w, http.StatusOK, "GET", endpoint, check)
}

func averageOver(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}
