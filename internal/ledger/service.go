package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ledgerApplies = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_applies_total",
	Help: "Ledger mutations by type and outcome",
}, []string{"type", "outcome"})

// EntryInput describes a manual deposit or withdrawal. Amount is the
// positive magnitude; the entry type carries the direction.
type EntryInput struct {
	Amount        decimal.Decimal
	Description   string
	PaymentMethod domain.PaymentMethod
	Reference     string
	CreatedBy     *uuid.UUID
}

// BankPaymentInput describes a cascade-confirmed payment to credit.
type BankPaymentInput struct {
	Amount        decimal.Decimal
	Reference     string
	BankCode      string
	AccountNumber string
	PhoneNumber   string
	ClientID      string
	SourceMethod  domain.SourceMethod
	Validation    json.RawMessage
}

// ApplyResult reports one committed balance mutation.
type ApplyResult struct {
	Transaction     *domain.Transaction `json:"transaction"`
	PreviousBalance decimal.Decimal     `json:"previous_balance"`
	NewBalance      decimal.Decimal     `json:"new_balance"`
}

// BankPaymentResult is either a committed credit or a duplicate verdict,
// never both.
type BankPaymentResult struct {
	Duplicate *DuplicateCheck `json:"duplicate,omitempty"`
	Applied   *ApplyResult    `json:"applied,omitempty"`
}

// Service is the single point where representative balances change. Every
// mutation creates the transaction row and updates the balance inside one
// database transaction with the representative row locked, so a torn write
// (entry without balance update, or vice versa) cannot be observed.
type Service struct {
	store    Store
	detector *Detector
	log      zerolog.Logger
	now      func() time.Time
}

// NewService builds the ledger service. now is injectable for tests; pass
// nil for time.Now.
func NewService(store Store, detector *Detector, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		detector: detector,
		log:      log.With().Str("component", "ledger").Logger(),
		now:      now,
	}
}

// Store exposes the underlying persistence boundary for read-only callers.
func (s *Service) Store() Store { return s.store }

// CheckDuplicate runs duplicate detection outside any transaction, for the
// pre-flight endpoints that only want the verdict.
func (s *Service) CheckDuplicate(ctx context.Context, claim BankPaymentClaim) DuplicateCheck {
	return s.detector.Check(ctx, s.store, claim)
}

// Deposit credits a representative. Deposits carry no balance guard; only
// withdrawals can be rejected for insufficient funds.
func (s *Service) Deposit(ctx context.Context, representativeID uuid.UUID, in EntryInput) (*ApplyResult, error) {
	return s.apply(ctx, representativeID, domain.TypeDeposit, in)
}

// Withdraw debits a representative, rejecting with ErrInsufficientBalance
// when the current balance does not cover the amount.
func (s *Service) Withdraw(ctx context.Context, representativeID uuid.UUID, in EntryInput) (*ApplyResult, error) {
	return s.apply(ctx, representativeID, domain.TypeWithdrawal, in)
}

func (s *Service) apply(ctx context.Context, representativeID uuid.UUID, entryType domain.TransactionType, in EntryInput) (*ApplyResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var result *ApplyResult
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		rep, err := tx.GetRepresentativeForUpdate(ctx, representativeID)
		if err != nil {
			return err
		}

		signed := in.Amount
		if entryType == domain.TypeWithdrawal {
			if rep.Balance.LessThan(in.Amount) {
				return ErrInsufficientBalance
			}
			signed = in.Amount.Neg()
		}

		description := in.Description
		if description == "" {
			description = fmt.Sprintf("Manual %s (%s)", entryType, in.PaymentMethod)
		}

		processedAt := s.now()
		entry := &domain.Transaction{
			ID:               uuid.New(),
			RepresentativeID: representativeID,
			Type:             entryType,
			Amount:           signed,
			Description:      description,
			PaymentMethod:    in.PaymentMethod,
			Reference:        in.Reference,
			Status:           domain.StatusCompleted,
			SourceMethod:     domain.SourceManual,
			CreatedBy:        in.CreatedBy,
			ProcessedAt:      &processedAt,
			CreatedAt:        processedAt,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		newBalance := rep.Balance.Add(signed)
		if err := tx.UpdateBalance(ctx, representativeID, newBalance); err != nil {
			return err
		}

		result = &ApplyResult{
			Transaction:     entry,
			PreviousBalance: rep.Balance,
			NewBalance:      newBalance,
		}
		return nil
	})
	if err != nil {
		ledgerApplies.WithLabelValues(string(entryType), "rejected").Inc()
		return nil, err
	}

	ledgerApplies.WithLabelValues(string(entryType), "applied").Inc()
	s.log.Info().
		Str("representative_id", representativeID.String()).
		Str("type", string(entryType)).
		Str("amount", in.Amount.String()).
		Str("new_balance", result.NewBalance.String()).
		Msg("ledger entry applied")
	return result, nil
}

// bankPaymentMetadata is the audit blob stored with bank-validated credits.
type bankPaymentMetadata struct {
	BankValidation json.RawMessage `json:"bank_validation,omitempty"`
	PhoneNumber    string          `json:"phone_number,omitempty"`
	ClientID       string          `json:"client_id,omitempty"`
	ProcessedAt    time.Time       `json:"processed_at"`
}

// RegisterBankPayment credits a cascade-confirmed payment. Duplicate
// detection runs inside the same transaction that locks the representative
// row, so an identical claim submitted twice yields exactly one completed
// transaction: the second run sees the first one's committed row and returns
// a duplicate verdict without touching the balance.
func (s *Service) RegisterBankPayment(ctx context.Context, representativeID uuid.UUID, in BankPaymentInput) (*BankPaymentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var result *BankPaymentResult
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		rep, err := tx.GetRepresentativeForUpdate(ctx, representativeID)
		if err != nil {
			return err
		}

		check := s.detector.Check(ctx, tx, BankPaymentClaim{
			Reference:     in.Reference,
			BankCode:      in.BankCode,
			AccountNumber: in.AccountNumber,
			Amount:        in.Amount,
			PhoneNumber:   in.PhoneNumber,
		})
		if check.Duplicate {
			result = &BankPaymentResult{Duplicate: &check}
			return nil
		}

		processedAt := s.now()
		metadata, err := json.Marshal(bankPaymentMetadata{
			BankValidation: in.Validation,
			PhoneNumber:    in.PhoneNumber,
			ClientID:       in.ClientID,
			ProcessedAt:    processedAt,
		})
		if err != nil {
			return err
		}

		entry := &domain.Transaction{
			ID:               uuid.New(),
			RepresentativeID: representativeID,
			Type:             domain.TypeDeposit,
			Amount:           in.Amount,
			Description:      fmt.Sprintf("Validated bank payment - %s", in.BankCode),
			PaymentMethod:    domain.MethodMobilePayment,
			Reference:        in.Reference,
			Status:           domain.StatusCompleted,
			BankCode:         in.BankCode,
			AccountNumber:    in.AccountNumber,
			PhoneNumber:      in.PhoneNumber,
			SourceMethod:     in.SourceMethod,
			Metadata:         metadata,
			ProcessedAt:      &processedAt,
			CreatedAt:        processedAt,
		}
		if err := tx.InsertTransaction(ctx, entry); err != nil {
			return err
		}

		newBalance := rep.Balance.Add(in.Amount)
		if err := tx.UpdateBalance(ctx, representativeID, newBalance); err != nil {
			return err
		}

		result = &BankPaymentResult{Applied: &ApplyResult{
			Transaction:     entry,
			PreviousBalance: rep.Balance,
			NewBalance:      newBalance,
		}}
		return nil
	})
	if err != nil {
		ledgerApplies.WithLabelValues("bank_payment", "rejected").Inc()
		return nil, err
	}

	if result.Duplicate != nil {
		ledgerApplies.WithLabelValues("bank_payment", "duplicate").Inc()
		s.log.Warn().
			Str("representative_id", representativeID.String()).
			Str("reference", in.Reference).
			Str("reason", result.Duplicate.Reason).
			Msg("bank payment rejected as duplicate")
		return result, nil
	}

	ledgerApplies.WithLabelValues("bank_payment", "applied").Inc()
	s.log.Info().
		Str("representative_id", representativeID.String()).
		Str("reference", in.Reference).
		Str("amount", in.Amount.String()).
		Str("new_balance", result.Applied.NewBalance.String()).
		Msg("bank payment applied")
	return result, nil
}
