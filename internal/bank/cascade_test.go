package bank

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeValidator scripts each method independently and counts invocations.
type fakeValidator struct {
	p2p, reference, existence func() (*ValidationResponse, error)

	p2pCalls, referenceCalls, existenceCalls int
}

func (f *fakeValidator) ValidateP2P(context.Context, ValidateP2PRequest) (*ValidationResponse, error) {
	f.p2pCalls++
	return f.p2p()
}

func (f *fakeValidator) ValidateReference(context.Context, ValidateReferenceRequest) (*ValidationResponse, error) {
	f.referenceCalls++
	return f.reference()
}

func (f *fakeValidator) ValidateExistence(context.Context, ValidateExistenceRequest) (*ValidationResponse, error) {
	f.existenceCalls++
	return f.existence()
}

func confirmed() (*ValidationResponse, error) {
	return &ValidationResponse{MovementExists: true, ControlNumber: "C-1"}, nil
}

func notFound() (*ValidationResponse, error) {
	return &ValidationResponse{MovementExists: false}, nil
}

func failing() (*ValidationResponse, error) {
	return nil, &TransportError{Endpoint: "/x", StatusCode: 502}
}

func testClaim() PaymentClaim {
	return PaymentClaim{
		AccountNumber: "01021234567890123456",
		BankCode:      102,
		PhoneNumber:   "04141234567",
		Reference:     "00012345",
		Amount:        25.00,
	}
}

func TestCascadeStopsAtFirstConfirmation(t *testing.T) {
	v := &fakeValidator{p2p: confirmed, reference: notFound, existence: notFound}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	assert.Equal(t, VerdictSuccess, result.Overall)
	assert.True(t, result.P2P.MovementExists)
	assert.Equal(t, 1, v.p2pCalls)
	assert.Zero(t, v.referenceCalls)
	assert.Zero(t, v.existenceCalls)
	assert.False(t, result.Reference.Executed)
	assert.False(t, result.Existence.Executed)

	method, ok := result.ConfirmedBy()
	require.True(t, ok)
	assert.Equal(t, MethodP2P, method)
	require.NotNil(t, result.ConfirmedData())
	assert.Equal(t, "C-1", result.ConfirmedData().ControlNumber)
}

func TestCascadeFallsThroughToReference(t *testing.T) {
	v := &fakeValidator{p2p: notFound, reference: confirmed, existence: notFound}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	assert.Equal(t, VerdictSuccess, result.Overall)
	assert.Equal(t, 1, v.p2pCalls)
	assert.Equal(t, 1, v.referenceCalls)
	assert.Zero(t, v.existenceCalls)

	method, _ := result.ConfirmedBy()
	assert.Equal(t, MethodReference, method)
}

func TestCascadeDegradesThroughFailures(t *testing.T) {
	// P2P and Reference fail at the transport, Existence answers but finds
	// nothing. The run must reach the third method and end in manual review.
	v := &fakeValidator{p2p: failing, reference: failing, existence: notFound}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	assert.Equal(t, VerdictManualReview, result.Overall)
	assert.True(t, result.P2P.Executed)
	assert.False(t, result.P2P.Success)
	assert.NotEmpty(t, result.P2P.Err)
	assert.True(t, result.Reference.Executed)
	assert.False(t, result.Reference.Success)
	assert.True(t, result.Existence.Executed)
	assert.True(t, result.Existence.Success)
	assert.False(t, result.Existence.MovementExists)
}

func TestCascadeAllMethodsFail(t *testing.T) {
	v := &fakeValidator{p2p: failing, reference: failing, existence: failing}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	// Every method ran and errored: inconclusive, so a human verifies.
	assert.Equal(t, VerdictManualReview, result.Overall)
	assert.True(t, result.P2P.Executed)
	assert.True(t, result.Reference.Executed)
	assert.True(t, result.Existence.Executed)
	assert.False(t, result.Confirmed())
}

func TestCascadeNoneConfirmed(t *testing.T) {
	v := &fakeValidator{p2p: notFound, reference: notFound, existence: notFound}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	assert.Equal(t, VerdictManualReview, result.Overall)
	assert.Equal(t, 1, v.p2pCalls)
	assert.Equal(t, 1, v.referenceCalls)
	assert.Equal(t, 1, v.existenceCalls)
	_, ok := result.ConfirmedBy()
	assert.False(t, ok)
}

func TestCascadeSurvivesPanic(t *testing.T) {
	v := &fakeValidator{
		p2p: func() (*ValidationResponse, error) { panic("boom") },
	}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	require.NotNil(t, result)
	assert.Equal(t, VerdictError, result.Overall)
	assert.NotEmpty(t, result.Message)
}

func TestCascadeExistenceOnlyConfirmation(t *testing.T) {
	v := &fakeValidator{p2p: failing, reference: notFound, existence: confirmed}
	c := NewCascade(v, zerolog.Nop())

	result := c.Validate(context.Background(), testClaim())

	assert.Equal(t, VerdictSuccess, result.Overall)
	method, _ := result.ConfirmedBy()
	assert.Equal(t, MethodExistence, method)
	assert.True(t, result.P2P.Executed)
	assert.False(t, result.P2P.Success)
}
