package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Transport issues raw calls against the bank API. The production
// implementation speaks HTTP; tests substitute deterministic fakes so no code
// path ever depends on the real endpoint being reachable.
type Transport interface {
	// Post sends body as JSON to path and decodes the JSON response into out.
	// workingKey may be empty for unauthenticated endpoints.
	Post(ctx context.Context, path, workingKey string, body, out any) error
	// Get fetches path and decodes the JSON response into out.
	Get(ctx context.Context, path string, out any) error
}

const defaultTimeout = 15 * time.Second

type httpTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns the real bank transport. Every call carries a
// bounded timeout; the bank is a third-party dependency outside our control.
func NewHTTPTransport(baseURL string, timeout time.Duration) Transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *httpTransport) Post(ctx context.Context, path, workingKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Endpoint: path, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Endpoint: path, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if workingKey != "" {
		req.Header.Set("X-Working-Key", workingKey)
	}

	return t.do(req, path, out)
}

func (t *httpTransport) Get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return &TransportError{Endpoint: path, Cause: err}
	}
	return t.do(req, path, out)
}

func (t *httpTransport) do(req *http.Request, path string, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Endpoint: path, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &TransportError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Endpoint: path, Cause: err}
	}
	return nil
}
