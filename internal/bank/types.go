package bank

import "time"

// LogOnRequest is the payload for the session-establishment endpoint.
type LogOnRequest struct {
	ClientGUID string `json:"ClientGUID"`
}

// LogOnResponse carries the working session key returned by the bank.
type LogOnResponse struct {
	WorkingKey string `json:"WorkingKey"`
}

// Envelope is the raw status/message wrapper every bank endpoint returns.
// Value carries the (eventually encrypted) payload.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidateP2PRequest looks up a phone-linked transfer by its full identity.
// This is the strictest of the three movement lookups.
type ValidateP2PRequest struct {
	AccountNumber string  `json:"AccountNumber"`
	BankCode      int     `json:"BankCode"`
	PhoneNumber   string  `json:"PhoneNumber"`
	ClientID      string  `json:"ClientID"`
	Reference     string  `json:"Reference"`
	RequestDate   string  `json:"RequestDate"`
	Amount        float64 `json:"Amount"`
	ChildClientID string  `json:"ChildClientID,omitempty"`
	BranchID      string  `json:"BranchID,omitempty"`
}

// ValidateReferenceRequest looks up a movement by transaction reference.
type ValidateReferenceRequest struct {
	ClientID      string  `json:"ClientID"`
	AccountNumber string  `json:"AccountNumber"`
	Reference     string  `json:"Reference"`
	Amount        float64 `json:"Amount"`
	DateMovement  string  `json:"DateMovement"`
	ChildClientID string  `json:"ChildClientID,omitempty"`
	BranchID      string  `json:"BranchID,omitempty"`
}

// ValidateExistenceRequest looks up any movement matching account, phone and
// amount, deliberately omitting the reference. Loosest match; used when the
// payer mistyped or omitted the reference.
type ValidateExistenceRequest struct {
	AccountNumber string  `json:"AccountNumber"`
	BankCode      int     `json:"BankCode"`
	PhoneNumber   string  `json:"PhoneNumber"`
	ClientID      string  `json:"ClientID"`
	RequestDate   string  `json:"RequestDate"`
	Amount        float64 `json:"Amount"`
	ChildClientID string  `json:"ChildClientID,omitempty"`
	BranchID      string  `json:"BranchID,omitempty"`
}

// ValidationResponse is the common decoded shape of all three lookups.
type ValidationResponse struct {
	MovementExists bool    `json:"MovementExists"`
	Date           string  `json:"Date"`
	ControlNumber  string  `json:"ControlNumber"`
	Amount         float64 `json:"Amount"`
	BankCode       string  `json:"BankCode"`
	Code           string  `json:"Code"`
	Concept        string  `json:"Concept"`
	DebitAccount   string  `json:"DebitAccount"`
	Type           string  `json:"Type"`
	BalanceDelta   string  `json:"BalanceDelta"`
	ReferenceA     string  `json:"ReferenceA"`
	ReferenceB     string  `json:"ReferenceB"`
	ReferenceC     string  `json:"ReferenceC"`
	ReferenceD     string  `json:"ReferenceD"`
	DebtorID       string  `json:"DebtorID,omitempty"`
	DebtorType     string  `json:"DebtorType,omitempty"`
}

// ExchangeRate is the daily central-bank reference rate.
type ExchangeRate struct {
	PriceRateBCV float64 `json:"PriceRateBCV"`
	RateDate     string  `json:"dtRate"`
}

// PaymentClaim is one normalized inbound payment claim, the input to the
// cascade. Field names mirror the bank wire shape so the three per-method
// request payloads can be derived without loss.
type PaymentClaim struct {
	AccountNumber string  `json:"AccountNumber"`
	BankCode      int     `json:"BankCode"`
	PhoneNumber   string  `json:"PhoneNumber"`
	ClientID      string  `json:"ClientID"`
	Reference     string  `json:"Reference"`
	RequestDate   string  `json:"RequestDate"`
	Amount        float64 `json:"Amount"`
	ChildClientID string  `json:"ChildClientID,omitempty"`
	BranchID      string  `json:"BranchID,omitempty"`
}

// Verdict is the overall outcome of a cascade run.
type Verdict string

const (
	VerdictSuccess      Verdict = "success"
	VerdictManualReview Verdict = "manual_review"
	VerdictError        Verdict = "error"
)

// Method identifies one of the three lookup strategies.
type Method string

const (
	MethodP2P       Method = "p2p"
	MethodReference Method = "reference"
	MethodExistence Method = "existence"
)

// MethodOutcome records what happened to a single cascade step. Executed is
// true once the step ran at all; Success means no transport/API error;
// MovementExists is the bank's answer when the call succeeded.
type MethodOutcome struct {
	Executed       bool                `json:"executed"`
	Success        bool                `json:"success"`
	MovementExists bool                `json:"movement_exists"`
	Data           *ValidationResponse `json:"data,omitempty"`
	Err            string              `json:"error,omitempty"`
}

// CascadeResult is the full per-method breakdown plus the overall verdict.
// Callers need the breakdown for audit trails and manual-review screens, not
// just the verdict.
type CascadeResult struct {
	Overall   Verdict       `json:"overall_result"`
	Message   string        `json:"message"`
	P2P       MethodOutcome `json:"validate_p2p"`
	Reference MethodOutcome `json:"validate_reference"`
	Existence MethodOutcome `json:"validate_existence"`
	Timestamp time.Time     `json:"timestamp"`
}

// Confirmed reports whether any method found the movement.
func (r *CascadeResult) Confirmed() bool {
	return r.P2P.MovementExists || r.Reference.MovementExists || r.Existence.MovementExists
}

// ConfirmedBy returns the strategy that found the movement, strictest first.
func (r *CascadeResult) ConfirmedBy() (Method, bool) {
	switch {
	case r.P2P.MovementExists:
		return MethodP2P, true
	case r.Reference.MovementExists:
		return MethodReference, true
	case r.Existence.MovementExists:
		return MethodExistence, true
	}
	return "", false
}

// ConfirmedData returns the decoded bank response of the confirming method.
func (r *CascadeResult) ConfirmedData() *ValidationResponse {
	switch {
	case r.P2P.MovementExists:
		return r.P2P.Data
	case r.Reference.MovementExists:
		return r.Reference.Data
	case r.Existence.MovementExists:
		return r.Existence.Data
	}
	return nil
}
