package bank

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthenticationError means a working session could not be established with
// the bank. The cascade treats it as a per-method failure, never as fatal.
type AuthenticationError struct {
	Reason string
	Cause  error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bank authentication failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("bank authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// TransportError is a network, HTTP or parse failure talking to a bank
// endpoint. StatusCode is zero when the request never got a response.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bank call %s failed: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("bank call %s failed: %v", e.Endpoint, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// DecodeError means the bank envelope could not be decoded into a
// ValidationResponse. Raised at the gateway boundary so partial objects never
// reach the cascade.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bank envelope decode failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("bank envelope decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// authRejected reports whether err is the bank refusing the session, which
// calls for a transparent key refresh and one retry.
func authRejected(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden
}
