// Package bank integrates with the external bank's payment-validation API:
// session authentication, the three movement lookups, and the cascade that
// orders them from strictest to loosest match.
package bank

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Bank API paths.
const (
	pathLogOn             = "/Auth/LogOn"
	pathValidateP2P       = "/Position/ValidateP2P"
	pathValidateReference = "/Position/Validate"
	pathValidateExistence = "/Position/ValidateExistence"
	pathBCVRates          = "/Services/BCVRates"
	pathWelcome           = "/welcome/home"
)

// EnvelopeDecoder transforms a raw bank envelope into a ValidationResponse.
// The bank will eventually encrypt Value with a shared master key; until that
// key is delivered the default decoder treats Value as plaintext JSON. The
// seam exists so real decryption can land without touching cascade logic.
type EnvelopeDecoder func(Envelope) (*ValidationResponse, error)

// DecodePlaintextEnvelope is the default decoder. It rejects malformed or
// empty payloads at the boundary instead of propagating partial objects.
func DecodePlaintextEnvelope(env Envelope) (*ValidationResponse, error) {
	if strings.EqualFold(env.Status, "KO") {
		return nil, &DecodeError{Reason: "bank reported failure: " + env.Message}
	}
	if env.Value == "" {
		return nil, &DecodeError{Reason: "envelope has no payload"}
	}
	var vr ValidationResponse
	if err := json.Unmarshal([]byte(env.Value), &vr); err != nil {
		return nil, &DecodeError{Reason: "malformed payload", Cause: err}
	}
	return &vr, nil
}

// Client talks to the bank API. The working session key is cached for the
// life of the client and refreshed transparently when any endpoint rejects
// it. Safe for concurrent use.
type Client struct {
	transport  Transport
	decode     EnvelopeDecoder
	clientGUID string
	log        zerolog.Logger

	mu         sync.Mutex
	workingKey string
}

// Option customizes a Client.
type Option func(*Client)

// WithDecoder swaps the envelope decoder, e.g. once real decryption exists.
func WithDecoder(d EnvelopeDecoder) Option {
	return func(c *Client) { c.decode = d }
}

// NewClient builds a bank client on top of the given transport.
func NewClient(transport Transport, clientGUID string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		transport:  transport,
		decode:     DecodePlaintextEnvelope,
		clientGUID: clientGUID,
		log:        log.With().Str("component", "bank-client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate establishes a working session with the bank and caches the
// key. Subsequent calls reuse the cached key until the bank rejects it.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) (string, error) {
	var resp LogOnResponse
	err := c.transport.Post(ctx, pathLogOn, "", LogOnRequest{ClientGUID: c.clientGUID}, &resp)
	if err != nil {
		return "", &AuthenticationError{Reason: "logon call failed", Cause: err}
	}
	if resp.WorkingKey == "" {
		return "", &AuthenticationError{Reason: "response is missing WorkingKey"}
	}

	c.workingKey = resp.WorkingKey
	c.log.Info().Msg("bank session established")
	return c.workingKey, nil
}

// IsAuthenticated reports whether a working key is currently cached.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workingKey != ""
}

// ensureSession returns the cached working key, authenticating on demand.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workingKey != "" {
		return c.workingKey, nil
	}
	return c.authenticateLocked(ctx)
}

// invalidateSession drops a key the bank no longer accepts.
func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.workingKey = ""
	c.mu.Unlock()
}

// validate runs one movement lookup: ensure session, post the payload,
// decode the envelope. On an auth-rejected response the session is refreshed
// once and the call retried.
func (c *Client) validate(ctx context.Context, path string, payload any) (*ValidationResponse, error) {
	key, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := c.transport.Post(ctx, path, key, payload, &env); err != nil {
		if !authRejected(err) {
			return nil, err
		}
		c.log.Warn().Str("endpoint", path).Msg("working key rejected, re-authenticating")
		c.invalidateSession()
		if key, err = c.ensureSession(ctx); err != nil {
			return nil, err
		}
		if err = c.transport.Post(ctx, path, key, payload, &env); err != nil {
			return nil, err
		}
	}

	return c.decode(env)
}

// ValidateP2P checks for a phone-linked transfer matching the full claim.
func (c *Client) ValidateP2P(ctx context.Context, req ValidateP2PRequest) (*ValidationResponse, error) {
	c.log.Debug().
		Str("account", req.AccountNumber).
		Str("reference", req.Reference).
		Float64("amount", req.Amount).
		Msg("validating P2P")
	return c.validate(ctx, pathValidateP2P, req)
}

// ValidateReference checks for a movement by transaction reference.
func (c *Client) ValidateReference(ctx context.Context, req ValidateReferenceRequest) (*ValidationResponse, error) {
	c.log.Debug().
		Str("account", req.AccountNumber).
		Str("reference", req.Reference).
		Float64("amount", req.Amount).
		Msg("validating by reference")
	return c.validate(ctx, pathValidateReference, req)
}

// ValidateExistence checks for any movement matching account, phone and
// amount, without a reference.
func (c *Client) ValidateExistence(ctx context.Context, req ValidateExistenceRequest) (*ValidationResponse, error) {
	c.log.Debug().
		Str("account", req.AccountNumber).
		Str("phone", req.PhoneNumber).
		Float64("amount", req.Amount).
		Msg("validating existence")
	return c.validate(ctx, pathValidateExistence, req)
}

// GetBCVRate fetches the central bank reference rate of the day.
func (c *Client) GetBCVRate(ctx context.Context) (*ExchangeRate, error) {
	var rate ExchangeRate
	if err := c.transport.Get(ctx, pathBCVRates, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Ping checks connectivity to the bank service.
func (c *Client) Ping(ctx context.Context) error {
	return c.transport.Get(ctx, pathWelcome, nil)
}
