package bank

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var cascadeVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bank_cascade_verdicts_total",
	Help: "Cascade validation runs by overall verdict",
}, []string{"verdict"})

// MovementValidator is the slice of the bank client the cascade needs.
// Tests substitute deterministic fakes.
type MovementValidator interface {
	ValidateP2P(ctx context.Context, req ValidateP2PRequest) (*ValidationResponse, error)
	ValidateReference(ctx context.Context, req ValidateReferenceRequest) (*ValidationResponse, error)
	ValidateExistence(ctx context.Context, req ValidateExistenceRequest) (*ValidationResponse, error)
}

// Cascade runs the three verification strategies in fixed priority order,
// strictest to loosest: P2P ties a phone-linked transfer to a specific
// reference, Reference matches on the reference alone, Existence only needs
// account+phone+amount. Ordering this way minimizes false positives while
// still degrading gracefully on incomplete data.
type Cascade struct {
	validator MovementValidator
	log       zerolog.Logger
	now       func() time.Time
}

// NewCascade builds the orchestrator.
func NewCascade(v MovementValidator, log zerolog.Logger) *Cascade {
	return &Cascade{
		validator: v,
		log:       log.With().Str("component", "bank-cascade").Logger(),
		now:       time.Now,
	}
}

// step is one strategy in the ordered list. run returns the decoded response
// or the error to record; the cascade never lets a step abort the run.
type step struct {
	name    Method
	outcome *MethodOutcome
	run     func(ctx context.Context) (*ValidationResponse, error)
}

// Validate tries the three strategies in order, stopping at the first
// confirmed movement. A step's transport or API failure is recorded in its
// outcome slot and the next step runs; the method always returns a result,
// never an error. The strategies are intentionally sequential: a later
// lookup should only run when an earlier one did not already confirm the
// movement, and each call burns shared rate-limited quota at the bank.
func (c *Cascade) Validate(ctx context.Context, claim PaymentClaim) (result *CascadeResult) {
	result = &CascadeResult{
		Overall:   VerdictError,
		Timestamp: c.now(),
	}

	steps := []step{
		{
			name:    MethodP2P,
			outcome: &result.P2P,
			run: func(ctx context.Context) (*ValidationResponse, error) {
				return c.validator.ValidateP2P(ctx, ValidateP2PRequest{
					AccountNumber: claim.AccountNumber,
					BankCode:      claim.BankCode,
					PhoneNumber:   claim.PhoneNumber,
					ClientID:      claim.ClientID,
					Reference:     claim.Reference,
					RequestDate:   claim.RequestDate,
					Amount:        claim.Amount,
					ChildClientID: claim.ChildClientID,
					BranchID:      claim.BranchID,
				})
			},
		},
		{
			name:    MethodReference,
			outcome: &result.Reference,
			run: func(ctx context.Context) (*ValidationResponse, error) {
				return c.validator.ValidateReference(ctx, ValidateReferenceRequest{
					ClientID:      claim.ClientID,
					AccountNumber: claim.AccountNumber,
					Reference:     claim.Reference,
					Amount:        claim.Amount,
					DateMovement:  claim.RequestDate,
					ChildClientID: claim.ChildClientID,
					BranchID:      claim.BranchID,
				})
			},
		},
		{
			name:    MethodExistence,
			outcome: &result.Existence,
			run: func(ctx context.Context) (*ValidationResponse, error) {
				return c.validator.ValidateExistence(ctx, ValidateExistenceRequest{
					AccountNumber: claim.AccountNumber,
					BankCode:      claim.BankCode,
					PhoneNumber:   claim.PhoneNumber,
					ClientID:      claim.ClientID,
					RequestDate:   claim.RequestDate,
					Amount:        claim.Amount,
					ChildClientID: claim.ChildClientID,
					BranchID:      claim.BranchID,
				})
			},
		},
	}

	defer func() {
		// Defensive guard: a defect outside the per-step recovery must still
		// yield a result object, degraded to an error verdict.
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("cascade aborted unexpectedly")
			result.Overall = VerdictError
			result.Message = "Validation process failed unexpectedly. Please contact the administrator."
		}
		cascadeVerdicts.WithLabelValues(string(result.Overall)).Inc()
	}()

	for _, s := range steps {
		resp, err := s.run(ctx)
		s.outcome.Executed = true
		if err != nil {
			s.outcome.Err = err.Error()
			c.log.Warn().
				Err(err).
				Str("method", string(s.name)).
				Str("reference", claim.Reference).
				Msg("validation step failed, trying next method")
			continue
		}

		s.outcome.Success = true
		s.outcome.MovementExists = resp.MovementExists
		s.outcome.Data = resp

		if resp.MovementExists {
			result.Overall = VerdictSuccess
			result.Message = confirmationMessage(s.name)
			c.log.Info().
				Str("method", string(s.name)).
				Str("reference", claim.Reference).
				Msg("movement confirmed")
			return result
		}
	}

	result.Overall, result.Message = classify(result)
	c.log.Info().
		Str("verdict", string(result.Overall)).
		Str("reference", claim.Reference).
		Msg("cascade completed without confirmation")
	return result
}

func confirmationMessage(m Method) string {
	switch m {
	case MethodP2P:
		return "Payment verified via P2P validation."
	case MethodReference:
		return "Payment verified via reference validation."
	default:
		return "Payment verified via existence validation."
	}
}

// classify decides the final verdict once no method confirmed the movement:
// if at least one method executed the checks were inconclusive and a human
// must verify; if every method failed outright the bank is unreachable.
func classify(r *CascadeResult) (Verdict, string) {
	if r.Confirmed() {
		return VerdictSuccess, "Payment verified."
	}
	if r.P2P.Executed || r.Reference.Executed || r.Existence.Executed {
		return VerdictManualReview, "No automatic validation found the movement; the payment will be verified manually."
	}
	return VerdictError, "No validation could be executed. Please contact the administrator."
}
