package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	// SignatureHeader carries the body signature on every delivery
	SignatureHeader = "X-WC-Webhook-Signature"

	// SyncPath is appended to the configured endpoint base URL
	SyncPath = "/api/v1/woocommerce-sync"
)

// Sign returns base64(HMAC-SHA256(secret, body)). The body must be the exact
// bytes that go on the wire.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret
func Verify(body []byte, secret, signature string) bool {
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// EndpointURL builds the sync endpoint from a base URL
func EndpointURL(base string) string {
	return strings.TrimRight(base, "/") + SyncPath
}
