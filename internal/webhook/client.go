package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBody caps how much of a response body is kept
const maxResponseBody = 64 << 10

// Result is the outcome of a delivery that produced an HTTP response
type Result struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// Success reports whether the receiver accepted the delivery.
// Only 200 and 201 count; every other status is a failure.
func (r *Result) Success() bool {
	return r.StatusCode == http.StatusOK || r.StatusCode == http.StatusCreated
}

// TransportError is returned when no HTTP response was received
type TransportError struct {
	Duration time.Duration
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client performs single-attempt webhook deliveries
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new delivery client with a fixed timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Deliver POSTs body to url with its signature. It never retries.
func (c *Client) Deliver(ctx context.Context, url string, body []byte, signature string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(SignatureHeader, signature)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Result, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Duration: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Duration: time.Since(start), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		Duration:   time.Since(start),
	}, nil
}
