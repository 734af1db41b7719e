package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypePayment    TransactionType = "payment"
	TypeFee        TransactionType = "fee"
	TypeAdjustment TransactionType = "adjustment"
)

// PaymentMethod is how the money moved.
type PaymentMethod string

const (
	MethodBankTransfer  PaymentMethod = "bank_transfer"
	MethodCash          PaymentMethod = "cash"
	MethodDebitCard     PaymentMethod = "debit_card"
	MethodCreditCard    PaymentMethod = "credit_card"
	MethodMobilePayment PaymentMethod = "mobile_payment"
	MethodCheck         PaymentMethod = "check"
)

// ValidPaymentMethod reports whether m is one of the accepted enum values.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodBankTransfer, MethodCash, MethodDebitCard, MethodCreditCard, MethodMobilePayment, MethodCheck:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusFailed    TransactionStatus = "failed"
	StatusReversed  TransactionStatus = "reversed"
)

// SourceMethod records which verification strategy (or manual entry) produced
// a transaction, so duplicate detection never has to probe nested metadata.
type SourceMethod string

const (
	SourceP2P       SourceMethod = "p2p"
	SourceReference SourceMethod = "reference"
	SourceExistence SourceMethod = "existence"
	SourceManual    SourceMethod = "manual"
)

// Representative is a guardian/payer holding a running balance.
// Balance is signed: positive means credit, negative means debt. It is the
// authoritative running total and must equal the sum of completed signed
// transaction amounts for the representative.
type Representative struct {
	ID           uuid.UUID       `json:"id"`
	FullName     string          `json:"full_name"`
	IdentityCard string          `json:"identity_card"`
	Phone        string          `json:"phone,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Transaction is an immutable financial ledger entry. Amount is signed:
// deposits are positive, withdrawals negative. Once Status is completed the
// amount and representative association never change.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	RepresentativeID uuid.UUID         `json:"representative_id"`
	Type             TransactionType   `json:"type"`
	Amount           decimal.Decimal   `json:"amount"`
	Description      string            `json:"description,omitempty"`
	PaymentMethod    PaymentMethod     `json:"payment_method"`
	Reference        string            `json:"reference,omitempty"`
	Status           TransactionStatus `json:"status"`
	BankCode         string            `json:"bank_code,omitempty"`
	AccountNumber    string            `json:"account_number,omitempty"`
	PhoneNumber      string            `json:"phone_number,omitempty"`
	SourceMethod     SourceMethod      `json:"source_method,omitempty"`
	Metadata         json.RawMessage   `json:"metadata,omitempty"`
	CreatedBy        *uuid.UUID        `json:"created_by,omitempty"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// IsCompleted reports whether the transaction counts toward the balance.
func (t *Transaction) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// IsDeposit reports whether the entry credits the representative.
func (t *Transaction) IsDeposit() bool {
	return t.Type == TypeDeposit
}

// RecentActivity bundles a representative with their latest ledger entries.
type RecentActivity struct {
	Representative *Representative `json:"representative"`
	Transactions   []Transaction   `json:"transactions"`
}
