package store

import (
	"context"
	"fmt"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RepresentativeFilter narrows and orders representative listings.
type RepresentativeFilter struct {
	// Search matches full name, identity card or phone, case-insensitive.
	Search string
	// BalanceStatus is debt, credit or zero.
	BalanceStatus string
	MinBalance    *decimal.Decimal
	MaxBalance    *decimal.Decimal
	// SortBy is full_name, balance, debt or created_at.
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// BalanceSummary aggregates the whole representative population.
type BalanceSummary struct {
	TotalRepresentatives int             `json:"total_representatives"`
	TotalBalance         decimal.Decimal `json:"total_balance"`
	TotalDebt            decimal.Decimal `json:"total_debt"`
	TotalCredit          decimal.Decimal `json:"total_credit"`
	AverageBalance       decimal.Decimal `json:"average_balance"`
	WithDebt             int             `json:"with_debt"`
	WithCredit           int             `json:"with_credit"`
	WithZero             int             `json:"with_zero"`
}

// MonthlyActivity is one month of completed ledger traffic. Deposits and
// withdrawals are reported as positive magnitudes.
type MonthlyActivity struct {
	Month        time.Time       `json:"month"`
	Transactions int             `json:"transaction_count"`
	Deposits     decimal.Decimal `json:"total_deposits"`
	Withdrawals  decimal.Decimal `json:"total_withdrawals"`
}

// BalanceBucket is one band of the balance distribution.
type BalanceBucket struct {
	Range string          `json:"range"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// FinancialAlerts counts representatives needing attention: deep debt, and
// debtors whose balance has not moved in 30 days.
type FinancialAlerts struct {
	HighDebt     int `json:"high_debt"`
	StaleDebtors int `json:"stale_debtors"`
}

const repSelect = `
	SELECT id, full_name, identity_card, phone, balance::text, created_at, updated_at
	FROM representatives`

// ListRepresentatives returns a filtered, ordered page of representatives
// plus the total count matching the filter.
func (s *Store) ListRepresentatives(ctx context.Context, f RepresentativeFilter) ([]domain.Representative, int, error) {
	where := " WHERE true"
	var args []any

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (full_name ILIKE $%d OR identity_card ILIKE $%d OR phone ILIKE $%d)", n, n, n)
	}
	switch f.BalanceStatus {
	case "debt":
		where += " AND balance < 0"
	case "credit":
		where += " AND balance > 0"
	case "zero":
		where += " AND balance = 0"
	}
	if f.MinBalance != nil {
		args = append(args, f.MinBalance.String())
		where += fmt.Sprintf(" AND balance >= $%d::numeric", len(args))
	}
	if f.MaxBalance != nil {
		args = append(args, f.MaxBalance.String())
		where += fmt.Sprintf(" AND balance <= $%d::numeric", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM representatives"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	direction := "ASC"
	if f.SortOrder == "desc" {
		direction = "DESC"
	}
	var order string
	switch f.SortBy {
	case "balance":
		order = "balance " + direction
	case "debt":
		// Deepest debt first; positive balances carry no debt.
		order = "LEAST(balance, 0) ASC"
	case "created_at":
		order = "created_at " + direction
	default:
		order = "full_name " + direction
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query := repSelect + where + " ORDER BY " + order + fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	reps, err := collectRepresentatives(rows)
	if err != nil {
		return nil, 0, err
	}
	return reps, total, nil
}

// GetBalanceSummary aggregates all balances in one pass.
func (s *Store) GetBalanceSummary(ctx context.Context) (*BalanceSummary, error) {
	var sum BalanceSummary
	var totalBalance, totalDebt, totalCredit, avg string
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(balance), 0)::text,
		       COALESCE(SUM(CASE WHEN balance < 0 THEN -balance ELSE 0 END), 0)::text,
		       COALESCE(SUM(CASE WHEN balance > 0 THEN balance ELSE 0 END), 0)::text,
		       COALESCE(AVG(balance), 0)::text,
		       COUNT(*) FILTER (WHERE balance < 0),
		       COUNT(*) FILTER (WHERE balance > 0),
		       COUNT(*) FILTER (WHERE balance = 0)
		FROM representatives`).Scan(
		&sum.TotalRepresentatives, &totalBalance, &totalDebt, &totalCredit, &avg,
		&sum.WithDebt, &sum.WithCredit, &sum.WithZero)
	if err != nil {
		return nil, err
	}
	if sum.TotalBalance, err = decimal.NewFromString(totalBalance); err != nil {
		return nil, err
	}
	if sum.TotalDebt, err = decimal.NewFromString(totalDebt); err != nil {
		return nil, err
	}
	if sum.TotalCredit, err = decimal.NewFromString(totalCredit); err != nil {
		return nil, err
	}
	if sum.AverageBalance, err = decimal.NewFromString(avg); err != nil {
		return nil, err
	}
	return &sum, nil
}

// TopDebtors returns the representatives with the deepest negative balances.
func (s *Store) TopDebtors(ctx context.Context, limit int) ([]domain.Representative, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		repSelect+` WHERE balance < 0 ORDER BY balance ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectRepresentatives(rows)
}

// TopCreditors returns the representatives with the largest positive balances.
func (s *Store) TopCreditors(ctx context.Context, limit int) ([]domain.Representative, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		repSelect+` WHERE balance > 0 ORDER BY balance DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectRepresentatives(rows)
}

// ListMonthlyActivity returns completed transaction volume per calendar month
// over the last months months, newest first.
func (s *Store) ListMonthlyActivity(ctx context.Context, months int) ([]MonthlyActivity, error) {
	if months <= 0 {
		months = 6
	}
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('month', created_at) AS month,
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE 0 END), 0)::text,
		       COALESCE(SUM(CASE WHEN type = 'withdrawal' THEN -amount ELSE 0 END), 0)::text
		FROM transactions
		WHERE status = 'completed'
		  AND created_at >= date_trunc('month', now()) - make_interval(months => $1)
		GROUP BY 1
		ORDER BY 1 DESC`, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activity []MonthlyActivity
	for rows.Next() {
		var m MonthlyActivity
		var deposits, withdrawals string
		if err := rows.Scan(&m.Month, &m.Transactions, &deposits, &withdrawals); err != nil {
			return nil, err
		}
		if m.Deposits, err = decimal.NewFromString(deposits); err != nil {
			return nil, err
		}
		if m.Withdrawals, err = decimal.NewFromString(withdrawals); err != nil {
			return nil, err
		}
		activity = append(activity, m)
	}
	return activity, rows.Err()
}

// ListBalanceBuckets groups representatives into fixed balance bands.
func (s *Store) ListBalanceBuckets(ctx context.Context) ([]BalanceBucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bucket, COUNT(*), COALESCE(SUM(balance), 0)::text
		FROM (
			SELECT balance,
			       CASE
			           WHEN balance < -500 THEN 'below -500'
			           WHEN balance < -100 THEN '-500 to -100'
			           WHEN balance < 0    THEN '-100 to 0'
			           WHEN balance = 0    THEN '0'
			           WHEN balance <= 100 THEN '0 to 100'
			           WHEN balance <= 500 THEN '100 to 500'
			           ELSE 'above 500'
			       END AS bucket
			FROM representatives
		) banded
		GROUP BY bucket
		ORDER BY MIN(balance)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []BalanceBucket
	for rows.Next() {
		var b BalanceBucket
		var total string
		if err := rows.Scan(&b.Range, &b.Count, &total); err != nil {
			return nil, err
		}
		if b.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// CountAlerts counts debtors past the attention thresholds.
func (s *Store) CountAlerts(ctx context.Context) (*FinancialAlerts, error) {
	var alerts FinancialAlerts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE balance < -100),
		       COUNT(*) FILTER (WHERE balance < 0 AND updated_at < now() - interval '30 days')
		FROM representatives`).Scan(&alerts.HighDebt, &alerts.StaleDebtors)
	if err != nil {
		return nil, err
	}
	return &alerts, nil
}

func collectRepresentatives(rows pgx.Rows) ([]domain.Representative, error) {
	defer rows.Close()

	var reps []domain.Representative
	for rows.Next() {
		rep, err := scanRepresentative(rows)
		if err != nil {
			return nil, err
		}
		reps = append(reps, *rep)
	}
	return reps, rows.Err()
}
