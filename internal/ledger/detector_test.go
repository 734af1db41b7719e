package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFinder returns canned rows and lets individual lookups fail.
type fakeFinder struct {
	exact    *domain.Transaction
	sameDay  []domain.Transaction
	byPhone  *domain.Transaction
	fail     error
	phoneHit int
}

func (f *fakeFinder) FindByBankIdentity(context.Context, string, string, string) (*domain.Transaction, error) {
	return f.exact, f.fail
}

func (f *fakeFinder) FindByBankAndAmount(context.Context, string, decimal.Decimal, time.Time, time.Time) ([]domain.Transaction, error) {
	return f.sameDay, f.fail
}

func (f *fakeFinder) FindByPhoneAndAmount(context.Context, string, decimal.Decimal, time.Time, time.Time) (*domain.Transaction, error) {
	f.phoneHit++
	return f.byPhone, f.fail
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 15, 14, 30, 0, 0, time.Local)
}

func testBankClaim() BankPaymentClaim {
	return BankPaymentClaim{
		Reference:     "00012345",
		BankCode:      "0102",
		AccountNumber: "01021234567890123456",
		Amount:        decimal.NewFromFloat(25.00),
		PhoneNumber:   "04141234567",
	}
}

func TestDetectorExactIdentityWins(t *testing.T) {
	existing := &domain.Transaction{ID: uuid.New(), Reference: "00012345"}
	d := NewDetector(zerolog.Nop(), fixedNow)

	check := d.Check(context.Background(), &fakeFinder{exact: existing}, testBankClaim())

	require.True(t, check.Duplicate)
	assert.Equal(t, ReasonExactIdentity, check.Reason)
	assert.Same(t, existing, check.Existing)
}

func TestDetectorExactIdentityIgnoresAmount(t *testing.T) {
	// The triple match fires even when the claimed amount differs; the
	// reference identifies the bank movement, not the money.
	existing := &domain.Transaction{ID: uuid.New(), Amount: decimal.NewFromFloat(99.99)}
	d := NewDetector(zerolog.Nop(), fixedNow)

	claim := testBankClaim()
	claim.Amount = decimal.NewFromFloat(1.00)
	check := d.Check(context.Background(), &fakeFinder{exact: existing}, claim)

	assert.True(t, check.Duplicate)
	assert.Equal(t, ReasonExactIdentity, check.Reason)
}

func TestDetectorSameDaySuffixMatch(t *testing.T) {
	sameDay := []domain.Transaction{
		{ID: uuid.New(), Reference: "99990000"},
		{ID: uuid.New(), Reference: "ABC2345"},
	}
	d := NewDetector(zerolog.Nop(), fixedNow)

	check := d.Check(context.Background(), &fakeFinder{sameDay: sameDay}, testBankClaim())

	require.True(t, check.Duplicate)
	assert.Equal(t, ReasonSameDaySimilar, check.Reason)
	assert.Equal(t, "ABC2345", check.Existing.Reference)
}

func TestDetectorSameDayDifferentSuffixIsClean(t *testing.T) {
	sameDay := []domain.Transaction{{ID: uuid.New(), Reference: "00019999"}}
	d := NewDetector(zerolog.Nop(), fixedNow)

	claim := testBankClaim()
	claim.PhoneNumber = ""
	check := d.Check(context.Background(), &fakeFinder{sameDay: sameDay}, claim)

	assert.False(t, check.Duplicate)
}

func TestDetectorPhoneMatch(t *testing.T) {
	existing := &domain.Transaction{ID: uuid.New(), PhoneNumber: "04141234567"}
	d := NewDetector(zerolog.Nop(), fixedNow)

	check := d.Check(context.Background(), &fakeFinder{byPhone: existing}, testBankClaim())

	require.True(t, check.Duplicate)
	assert.Equal(t, ReasonSameDayPhone, check.Reason)
}

func TestDetectorSkipsPhoneLookupWithoutPhone(t *testing.T) {
	finder := &fakeFinder{byPhone: &domain.Transaction{ID: uuid.New()}}
	d := NewDetector(zerolog.Nop(), fixedNow)

	claim := testBankClaim()
	claim.PhoneNumber = ""
	check := d.Check(context.Background(), finder, claim)

	assert.False(t, check.Duplicate)
	assert.Zero(t, finder.phoneHit)
}

func TestDetectorFailsOpenOnStoreError(t *testing.T) {
	finder := &fakeFinder{fail: errors.New("connection reset")}
	d := NewDetector(zerolog.Nop(), fixedNow)

	check := d.Check(context.Background(), finder, testBankClaim())

	assert.False(t, check.Duplicate)
	assert.Empty(t, check.Reason)
}

func TestReferenceSuffixMatch(t *testing.T) {
	assert.True(t, referenceSuffixMatch("00012345", "99992345"))
	assert.True(t, referenceSuffixMatch("2345", "99992345"))
	assert.False(t, referenceSuffixMatch("", "2345"))
	assert.False(t, referenceSuffixMatch("2345", ""))
	assert.False(t, referenceSuffixMatch("00011111", "00012345"))
}
