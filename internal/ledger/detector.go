package ledger

import (
	"context"
	"time"

	"github.com/colepay/colepay/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var duplicateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_duplicate_checks_total",
	Help: "Duplicate detection outcomes by matched criterion",
}, []string{"outcome"})

// Duplicate criteria reasons, surfaced to callers and review screens.
const (
	ReasonExactIdentity  = "transaction with same reference, bank and account already registered"
	ReasonSameDaySimilar = "similar transaction already registered today (same amount and bank)"
	ReasonSameDayPhone   = "transaction with same phone and amount already registered today"
)

// BankPaymentClaim carries the bank-supplied identifying fields of a payment
// about to be credited.
type BankPaymentClaim struct {
	Reference     string
	BankCode      string
	AccountNumber string
	Amount        decimal.Decimal
	PhoneNumber   string
}

// DuplicateCheck is the detector's verdict. Advisory: callers decide whether
// to reject outright or flag for review.
type DuplicateCheck struct {
	Duplicate bool                `json:"duplicate"`
	Reason    string              `json:"reason,omitempty"`
	Existing  *domain.Transaction `json:"existing_transaction,omitempty"`
}

// Detector guards against double-crediting: the same bank notification may
// be retried or submitted by multiple callers. Three independent heuristics
// are evaluated in order, first hit wins.
//
// On an internal store error the detector fails open and reports "not a
// duplicate" rather than blocking a legitimate payment. Known risk: a
// transient DB error can let a real duplicate through; the nightly
// reconciliation audit is the backstop.
type Detector struct {
	log zerolog.Logger
	now func() time.Time
}

// NewDetector builds a detector. now is injectable for calendar-day tests;
// pass nil for time.Now.
func NewDetector(log zerolog.Logger, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{
		log: log.With().Str("component", "duplicate-detector").Logger(),
		now: now,
	}
}

// Check runs the three heuristics against finder:
//
//  1. Exact identity: identical (reference, bank code, account number).
//  2. Same-day coincidence: a transaction today with the same bank code and
//     amount whose reference shares the last 4 characters with the claim.
//     Guards against references the bank truncates or reformats
//     inconsistently across lookup methods.
//  3. Same-day phone+amount, only when the claim carries a phone number.
//
// "Today" is midnight-to-midnight in server local time.
func (d *Detector) Check(ctx context.Context, finder TransactionFinder, claim BankPaymentClaim) DuplicateCheck {
	exact, err := finder.FindByBankIdentity(ctx, claim.Reference, claim.BankCode, claim.AccountNumber)
	if err != nil {
		return d.failOpen(err, "exact identity lookup failed")
	}
	if exact != nil {
		duplicateChecks.WithLabelValues("exact_identity").Inc()
		return DuplicateCheck{Duplicate: true, Reason: ReasonExactIdentity, Existing: exact}
	}

	dayStart, dayEnd := d.today()

	sameDay, err := finder.FindByBankAndAmount(ctx, claim.BankCode, claim.Amount, dayStart, dayEnd)
	if err != nil {
		return d.failOpen(err, "same-day lookup failed")
	}
	for i := range sameDay {
		if referenceSuffixMatch(sameDay[i].Reference, claim.Reference) {
			duplicateChecks.WithLabelValues("same_day_similar").Inc()
			return DuplicateCheck{Duplicate: true, Reason: ReasonSameDaySimilar, Existing: &sameDay[i]}
		}
	}

	if claim.PhoneNumber != "" {
		samePhone, err := finder.FindByPhoneAndAmount(ctx, claim.PhoneNumber, claim.Amount, dayStart, dayEnd)
		if err != nil {
			return d.failOpen(err, "phone lookup failed")
		}
		if samePhone != nil {
			duplicateChecks.WithLabelValues("same_day_phone").Inc()
			return DuplicateCheck{Duplicate: true, Reason: ReasonSameDayPhone, Existing: samePhone}
		}
	}

	duplicateChecks.WithLabelValues("clean").Inc()
	return DuplicateCheck{}
}

func (d *Detector) failOpen(err error, msg string) DuplicateCheck {
	duplicateChecks.WithLabelValues("fail_open").Inc()
	d.log.Error().Err(err).Msg(msg + "; failing open")
	return DuplicateCheck{}
}

// today returns the local calendar day as [start, end).
func (d *Detector) today() (time.Time, time.Time) {
	now := d.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

// referenceSuffixMatch reports whether both references are non-empty and
// share their last 4 characters.
func referenceSuffixMatch(existing, claimed string) bool {
	if existing == "" || claimed == "" {
		return false
	}
	return suffix4(existing) == suffix4(claimed)
}

func suffix4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
