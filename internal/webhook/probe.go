package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// healthPath is probed when the sync endpoint rejects the secret
const healthPath = "/api/health"

// ProbeResult describes a connectivity test against the receiving application
type ProbeResult struct {
	OK         bool     `json:"ok"`
	StatusCode int      `json:"status_code,omitempty"`
	Message    string   `json:"message"`
	Hints      []string `json:"hints,omitempty"`
	Reachable  *bool    `json:"reachable,omitempty"`
}

type probeDocument struct {
	Test          bool   `json:"test"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"`
	WebhookSecret string `json:"webhook_secret"`
}

// Probe sends a test document to the sync endpoint. It never touches the
// sync log.
func (c *Client) Probe(ctx context.Context, baseURL, secret string) *ProbeResult {
	url := EndpointURL(baseURL)

	body, err := json.Marshal(probeDocument{
		Test:          true,
		Message:       "Connection test from order sync service",
		Timestamp:     time.Now().Unix(),
		WebhookSecret: secret,
	})
	if err != nil {
		return &ProbeResult{Message: fmt.Sprintf("Connection failed: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &ProbeResult{Message: fmt.Sprintf("Connection failed: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Webhook-Secret", secret)

	res, err := c.do(req)
	if err != nil {
		return &ProbeResult{Message: fmt.Sprintf("Connection failed: %v", err)}
	}

	result := &ProbeResult{StatusCode: res.StatusCode}
	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated:
		result.OK = true
		result.Message = "Connection successful, the receiving application accepted the request"
	case http.StatusUnauthorized:
		reachable := c.healthy(ctx, baseURL)
		result.Reachable = &reachable
		if reachable {
			result.Message = "Authentication failed (HTTP 401) but basic connectivity works"
		} else {
			result.Message = "Authentication failed (HTTP 401)"
		}
		result.Hints = []string{
			"Check that the webhook secret matches the receiving application",
			"Check that the receiver validates the signature header",
			"Check that no extra authentication middleware blocks the sync endpoint",
		}
	case http.StatusForbidden:
		result.Message = "Access forbidden (HTTP 403)"
		result.Hints = []string{
			"Check that the receiver accepts requests from this host",
			"Check that no firewall or security middleware blocks the request",
		}
	case http.StatusNotFound:
		result.Message = "Endpoint not found (HTTP 404)"
		result.Hints = []string{
			fmt.Sprintf("Check that the route %s exists on the receiver", SyncPath),
			fmt.Sprintf("Check the configured URL: %s", url),
		}
	case http.StatusMethodNotAllowed:
		result.Message = "Method not allowed (HTTP 405)"
		result.Hints = []string{"Check that the sync route accepts POST requests"}
	default:
		result.Message = fmt.Sprintf("Unexpected response (HTTP %d): %s", res.StatusCode, res.Body)
	}

	return result
}

// healthy reports whether GET {base}/api/health answers 200
func (c *Client) healthy(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+healthPath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.do(req)
	return err == nil && res.StatusCode == http.StatusOK
}
