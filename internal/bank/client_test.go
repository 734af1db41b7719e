package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	path string
	key  string
}

// fakeTransport scripts responses per path and records every call.
type fakeTransport struct {
	calls   []recordedCall
	respond func(call int, path, key string, out any) error
}

func (f *fakeTransport) Post(_ context.Context, path, key string, _, out any) error {
	f.calls = append(f.calls, recordedCall{path: path, key: key})
	return f.respond(len(f.calls), path, key, out)
}

func (f *fakeTransport) Get(_ context.Context, path string, out any) error {
	f.calls = append(f.calls, recordedCall{path: path})
	return f.respond(len(f.calls), path, "", out)
}

func setLogOn(out any, key string) {
	*(out.(*LogOnResponse)) = LogOnResponse{WorkingKey: key}
}

func setEnvelope(t *testing.T, out any, vr ValidationResponse) {
	t.Helper()
	raw, err := json.Marshal(vr)
	require.NoError(t, err)
	*(out.(*Envelope)) = Envelope{Status: "OK", Value: string(raw)}
}

func TestAuthenticateCachesWorkingKey(t *testing.T) {
	ft := &fakeTransport{respond: func(_ int, path, _ string, out any) error {
		require.Equal(t, pathLogOn, path)
		setLogOn(out, "key-1")
		return nil
	}}
	c := NewClient(ft, "guid", zerolog.Nop())

	require.False(t, c.IsAuthenticated())
	key, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)
	assert.True(t, c.IsAuthenticated())
}

func TestAuthenticateMissingWorkingKey(t *testing.T) {
	ft := &fakeTransport{respond: func(_ int, _, _ string, out any) error {
		setLogOn(out, "")
		return nil
	}}
	c := NewClient(ft, "guid", zerolog.Nop())

	_, err := c.Authenticate(context.Background())
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, c.IsAuthenticated())
}

func TestValidateAuthenticatesOnDemand(t *testing.T) {
	ft := &fakeTransport{respond: func(call int, path, key string, out any) error {
		switch call {
		case 1:
			require.Equal(t, pathLogOn, path)
			setLogOn(out, "key-1")
		case 2:
			require.Equal(t, pathValidateReference, path)
			require.Equal(t, "key-1", key)
			setEnvelope(t, out, ValidationResponse{MovementExists: true})
		}
		return nil
	}}
	c := NewClient(ft, "guid", zerolog.Nop())

	resp, err := c.ValidateReference(context.Background(), ValidateReferenceRequest{Reference: "123"})
	require.NoError(t, err)
	assert.True(t, resp.MovementExists)
	assert.Len(t, ft.calls, 2)
}

func TestValidateRefreshesRejectedSession(t *testing.T) {
	ft := &fakeTransport{respond: func(call int, path, key string, out any) error {
		switch call {
		case 1:
			setLogOn(out, "stale")
		case 2:
			require.Equal(t, "stale", key)
			return &TransportError{Endpoint: path, StatusCode: http.StatusUnauthorized}
		case 3:
			require.Equal(t, pathLogOn, path)
			setLogOn(out, "fresh")
		case 4:
			require.Equal(t, "fresh", key)
			setEnvelope(t, out, ValidationResponse{MovementExists: true})
		}
		return nil
	}}
	c := NewClient(ft, "guid", zerolog.Nop())

	resp, err := c.ValidateP2P(context.Background(), ValidateP2PRequest{Reference: "123"})
	require.NoError(t, err)
	assert.True(t, resp.MovementExists)
	assert.Len(t, ft.calls, 4)
}

func TestValidateNonAuthErrorIsNotRetried(t *testing.T) {
	ft := &fakeTransport{respond: func(call int, path, _ string, out any) error {
		if call == 1 {
			setLogOn(out, "key-1")
			return nil
		}
		return &TransportError{Endpoint: path, StatusCode: http.StatusInternalServerError}
	}}
	c := NewClient(ft, "guid", zerolog.Nop())

	_, err := c.ValidateExistence(context.Background(), ValidateExistenceRequest{})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Len(t, ft.calls, 2)
}

func TestDecodePlaintextEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{"bank failure status", Envelope{Status: "KO", Message: "down"}, true},
		{"empty payload", Envelope{Status: "OK"}, true},
		{"malformed payload", Envelope{Status: "OK", Value: "{not json"}, true},
		{"valid payload", Envelope{Status: "OK", Value: `{"MovementExists":true}`}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodePlaintextEnvelope(tt.env)
			if tt.wantErr {
				var de *DecodeError
				require.ErrorAs(t, err, &de)
				return
			}
			require.NoError(t, err)
			assert.True(t, resp.MovementExists)
		})
	}
}

func TestGetBCVRate(t *testing.T) {
	ft := &fakeTransport{respond: func(_ int, path, _ string, out any) error {
		require.Equal(t, pathBCVRates, path)
		*(out.(*ExchangeRate)) = ExchangeRate{PriceRateBCV: 36.42, RateDate: "2026-08-29"}
		return nil
	}}
	c := NewClient(ft, "guid", zerolog.Nop())

	rate, err := c.GetBCVRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 36.42, rate.PriceRateBCV)
}

func TestAuthRejected(t *testing.T) {
	assert.True(t, authRejected(&TransportError{StatusCode: http.StatusUnauthorized}))
	assert.True(t, authRejected(&TransportError{StatusCode: http.StatusForbidden}))
	assert.False(t, authRejected(&TransportError{StatusCode: http.StatusBadGateway}))
	assert.False(t, authRejected(errors.New("plain")))
}
