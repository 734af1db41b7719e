// Package store implements the ledger persistence boundary on PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/colepay/colepay/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the pgxpool-backed implementation of ledger.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database and verifies the connection.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WithTx runs fn inside one database transaction. A nil error commits;
// anything else rolls the whole unit back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.TxStore) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// GetRepresentative retrieves a representative by ID.
func (s *Store) GetRepresentative(ctx context.Context, id uuid.UUID) (*domain.Representative, error) {
	return scanRepresentative(s.pool.QueryRow(ctx,
		`SELECT id, full_name, identity_card, phone, balance::text, created_at, updated_at
		 FROM representatives WHERE id = $1`, id))
}

// GetRecentTransactions returns the latest ledger entries for a
// representative, newest first.
func (s *Store) GetRecentTransactions(ctx context.Context, representativeID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		txSelect+` WHERE representative_id = $1 ORDER BY created_at DESC LIMIT $2`,
		representativeID, limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// ListTransactions returns a filtered slice of a representative's history.
func (s *Store) ListTransactions(ctx context.Context, representativeID uuid.UUID, f ledger.TransactionFilter) ([]domain.Transaction, error) {
	query := txSelect + ` WHERE representative_id = $1`
	args := []any{representativeID}

	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// FindByReferenceAndBank returns the newest transaction with the given
// reference and bank code, or nil.
func (s *Store) FindByReferenceAndBank(ctx context.Context, reference, bankCode string) (*domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		txSelect+` WHERE reference = $1 AND bank_code = $2 ORDER BY created_at DESC LIMIT 1`,
		reference, bankCode)
	if err != nil {
		return nil, err
	}
	return firstTransaction(rows)
}

// FindByBankIdentity implements ledger.TransactionFinder on the pool.
func (s *Store) FindByBankIdentity(ctx context.Context, reference, bankCode, accountNumber string) (*domain.Transaction, error) {
	return findByBankIdentity(ctx, s.pool, reference, bankCode, accountNumber)
}

// FindByBankAndAmount implements ledger.TransactionFinder on the pool.
func (s *Store) FindByBankAndAmount(ctx context.Context, bankCode string, amount decimal.Decimal, from, to time.Time) ([]domain.Transaction, error) {
	return findByBankAndAmount(ctx, s.pool, bankCode, amount, from, to)
}

// FindByPhoneAndAmount implements ledger.TransactionFinder on the pool.
func (s *Store) FindByPhoneAndAmount(ctx context.Context, phoneNumber string, amount decimal.Decimal, from, to time.Time) (*domain.Transaction, error) {
	return findByPhoneAndAmount(ctx, s.pool, phoneNumber, amount, from, to)
}

// BalanceDrift is a representative whose stored balance disagrees with the
// sum of their completed transactions.
type BalanceDrift struct {
	RepresentativeID uuid.UUID
	FullName         string
	Balance          decimal.Decimal
	LedgerTotal      decimal.Decimal
}

// ListBalanceDrift recomputes each balance from the ledger and returns the
// representatives where the stored value disagrees.
func (s *Store) ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.full_name, r.balance::text,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'completed'), 0)::text AS ledger_total
		FROM representatives r
		LEFT JOIN transactions t ON t.representative_id = r.id
		GROUP BY r.id, r.full_name, r.balance
		HAVING r.balance <> COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'completed'), 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		var balance, total string
		if err := rows.Scan(&d.RepresentativeID, &d.FullName, &balance, &total); err != nil {
			return nil, err
		}
		if d.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, err
		}
		if d.LedgerTotal, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// txStore is the transaction-scoped view handed to ledger.Service.
type txStore struct {
	tx pgx.Tx
}

// GetRepresentativeForUpdate loads and row-locks the representative,
// serializing concurrent mutations of the same balance.
func (t *txStore) GetRepresentativeForUpdate(ctx context.Context, id uuid.UUID) (*domain.Representative, error) {
	return scanRepresentative(t.tx.QueryRow(ctx,
		`SELECT id, full_name, identity_card, phone, balance::text, created_at, updated_at
		 FROM representatives WHERE id = $1 FOR UPDATE`, id))
}

// InsertTransaction appends a ledger entry.
func (t *txStore) InsertTransaction(ctx context.Context, entry *domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions
			(id, representative_id, type, amount, description, payment_method, reference,
			 status, bank_code, account_number, phone_number, source_method, metadata,
			 created_by, processed_at, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		entry.ID, entry.RepresentativeID, string(entry.Type), entry.Amount.String(),
		entry.Description, string(entry.PaymentMethod), nullIfEmpty(entry.Reference),
		string(entry.Status), nullIfEmpty(entry.BankCode), nullIfEmpty(entry.AccountNumber),
		nullIfEmpty(entry.PhoneNumber), nullIfEmpty(string(entry.SourceMethod)),
		entry.Metadata, entry.CreatedBy, entry.ProcessedAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

// UpdateBalance sets the representative's running balance.
func (t *txStore) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE representatives SET balance = $1::numeric, updated_at = now() WHERE id = $2`,
		balance.String(), id)
	if err != nil {
		return fmt.Errorf("balance update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrRepresentativeNotFound
	}
	return nil
}

func (t *txStore) FindByBankIdentity(ctx context.Context, reference, bankCode, accountNumber string) (*domain.Transaction, error) {
	return findByBankIdentity(ctx, t.tx, reference, bankCode, accountNumber)
}

func (t *txStore) FindByBankAndAmount(ctx context.Context, bankCode string, amount decimal.Decimal, from, to time.Time) ([]domain.Transaction, error) {
	return findByBankAndAmount(ctx, t.tx, bankCode, amount, from, to)
}

func (t *txStore) FindByPhoneAndAmount(ctx context.Context, phoneNumber string, amount decimal.Decimal, from, to time.Time) (*domain.Transaction, error) {
	return findByPhoneAndAmount(ctx, t.tx, phoneNumber, amount, from, to)
}

// Shared queries.

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const txSelect = `
	SELECT id, representative_id, type, amount::text, description, payment_method,
	       reference, status, bank_code, account_number, phone_number, source_method,
	       metadata, created_by, processed_at, created_at
	FROM transactions`

func findByBankIdentity(ctx context.Context, q rowQuerier, reference, bankCode, accountNumber string) (*domain.Transaction, error) {
	rows, err := q.Query(ctx,
		txSelect+` WHERE reference = $1 AND bank_code = $2 AND account_number = $3 LIMIT 1`,
		reference, bankCode, accountNumber)
	if err != nil {
		return nil, err
	}
	return firstTransaction(rows)
}

func findByBankAndAmount(ctx context.Context, q rowQuerier, bankCode string, amount decimal.Decimal, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := q.Query(ctx,
		txSelect+` WHERE bank_code = $1 AND amount = $2::numeric AND created_at >= $3 AND created_at < $4`,
		bankCode, amount.String(), from, to)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func findByPhoneAndAmount(ctx context.Context, q rowQuerier, phoneNumber string, amount decimal.Decimal, from, to time.Time) (*domain.Transaction, error) {
	rows, err := q.Query(ctx,
		txSelect+` WHERE phone_number = $1 AND amount = $2::numeric AND created_at >= $3 AND created_at < $4 LIMIT 1`,
		phoneNumber, amount.String(), from, to)
	if err != nil {
		return nil, err
	}
	return firstTransaction(rows)
}

// Scan helpers.

func scanRepresentative(row pgx.Row) (*domain.Representative, error) {
	var rep domain.Representative
	var phone *string
	var balance string
	err := row.Scan(&rep.ID, &rep.FullName, &rep.IdentityCard, &phone, &balance, &rep.CreatedAt, &rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrRepresentativeNotFound
	}
	if err != nil {
		return nil, err
	}
	if phone != nil {
		rep.Phone = *phone
	}
	if rep.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid balance for representative %s: %w", rep.ID, err)
	}
	return &rep, nil
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func firstTransaction(rows pgx.Rows) (*domain.Transaction, error) {
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	entry, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return entry, rows.Err()
}

func scanTransaction(rows pgx.Rows) (*domain.Transaction, error) {
	var entry domain.Transaction
	var amount string
	var description, reference, bankCode, accountNumber, phoneNumber, sourceMethod *string
	var txType, paymentMethod, status string

	err := rows.Scan(&entry.ID, &entry.RepresentativeID, &txType, &amount, &description,
		&paymentMethod, &reference, &status, &bankCode, &accountNumber, &phoneNumber,
		&sourceMethod, &entry.Metadata, &entry.CreatedBy, &entry.ProcessedAt, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.Type = domain.TransactionType(txType)
	entry.PaymentMethod = domain.PaymentMethod(paymentMethod)
	entry.Status = domain.TransactionStatus(status)
	if entry.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount for transaction %s: %w", entry.ID, err)
	}
	entry.Description = deref(description)
	entry.Reference = deref(reference)
	entry.BankCode = deref(bankCode)
	entry.AccountNumber = deref(accountNumber)
	entry.PhoneNumber = deref(phoneNumber)
	entry.SourceMethod = domain.SourceMethod(deref(sourceMethod))
	return &entry, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
