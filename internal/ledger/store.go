// Package ledger maintains representative balances and the append-only
// transaction log behind them: duplicate detection for bank payment claims
// and the single atomic path that mutates a balance.
package ledger

import (
	"context"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionFinder exposes the lookups duplicate detection needs. Both the
// pool-backed store and the transaction-scoped store satisfy it, so the
// detector can run standalone or inside the applier's atomic unit.
type TransactionFinder interface {
	// FindByBankIdentity returns the transaction matching the exact
	// (reference, bank code, account number) triple, or nil.
	FindByBankIdentity(ctx context.Context, reference, bankCode, accountNumber string) (*domain.Transaction, error)
	// FindByBankAndAmount returns transactions with the given bank code and
	// amount created in [from, to).
	FindByBankAndAmount(ctx context.Context, bankCode string, amount decimal.Decimal, from, to time.Time) ([]domain.Transaction, error)
	// FindByPhoneAndAmount returns the first transaction with the given
	// phone number and amount created in [from, to), or nil.
	FindByPhoneAndAmount(ctx context.Context, phoneNumber string, amount decimal.Decimal, from, to time.Time) (*domain.Transaction, error)
}

// TxStore is the slice of the store visible inside one atomic unit. The
// representative row is locked for the duration, serializing concurrent
// mutations of the same balance.
type TxStore interface {
	TransactionFinder

	// GetRepresentativeForUpdate loads and row-locks a representative.
	// Returns ErrRepresentativeNotFound when absent.
	GetRepresentativeForUpdate(ctx context.Context, id uuid.UUID) (*domain.Representative, error)
	// InsertTransaction appends a ledger entry.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	// UpdateBalance sets the representative's running balance.
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
}

// Store is the persistence boundary of the ledger. WithTx runs fn inside a
// single database transaction: either every write in fn is applied or none
// is observable, which is what keeps the balance invariant intact.
type Store interface {
	TransactionFinder

	WithTx(ctx context.Context, fn func(TxStore) error) error
	GetRepresentative(ctx context.Context, id uuid.UUID) (*domain.Representative, error)
	GetRecentTransactions(ctx context.Context, representativeID uuid.UUID, limit int) ([]domain.Transaction, error)
	ListTransactions(ctx context.Context, representativeID uuid.UUID, f TransactionFilter) ([]domain.Transaction, error)
	FindByReferenceAndBank(ctx context.Context, reference, bankCode string) (*domain.Transaction, error)
}

// TransactionFilter narrows history queries.
type TransactionFilter struct {
	Type      domain.TransactionType
	Status    domain.TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
