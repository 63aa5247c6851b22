package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// UnknownReason is reported when a status mismatch comes without a reason phrase.
const UnknownReason = "Unknown error occurred - reason provided by the server was null"

// Compile-time interface guard.
var _ Check = (*HTTPCheck)(nil)

// StatusError reports an HTTP response whose status did not match.
type StatusError struct {
	StatusCode int
	Expected   int
	Reason     string
}

// Error returns the server's reason phrase, or UnknownReason when it sent none.
func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Reason) == "" {
		return UnknownReason
	}
	return e.Reason
}

// HTTPCheck sends a GET request and compares the response status code.
type HTTPCheck struct {
	client   *http.Client
	url      string
	expected int
}

// NewHTTPClient returns the client shared by HTTP checks. Self-signed TLS
// certificates are accepted (InsecureSkipVerify). Per-attempt timeouts come
// from the request context, which Monitor always bounds.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}, //nolint:gosec // G402: monitoring must work with self-signed certs
			DisableKeepAlives: true,
		},
	}
}

// NewHTTPCheck creates an HTTP check for spec. A nil client uses NewHTTPClient.
func NewHTTPCheck(client *http.Client, spec HTTPSpec) *HTTPCheck {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HTTPCheck{client: client, url: spec.URL, expected: spec.ExpectedStatus}
}

// Check succeeds iff the response status equals the expected status.
// Transport errors (DNS, connect, timeout, cancellation) are returned as is.
func (c *HTTPCheck) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", c.url, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode == c.expected {
		return nil
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Expected:   c.expected,
		Reason:     reasonPhrase(resp),
	}
}

// reasonPhrase extracts the text after the numeric code in the status line.
func reasonPhrase(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}
