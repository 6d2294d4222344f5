package service

import (
	"strings"

	"order-sync-service/internal/models"
)

const statusPrefix = "wc-"

// Reasons a sync does not proceed
const (
	ReasonNotConfigured    = "not_configured"
	ReasonStatusNotAllowed = "status_not_allowed"
)

// Decision is the outcome of the sync policy
type Decision struct {
	Proceed bool
	Reason  string
	// Record is set when the refusal must still be written to the sync log
	Record bool
}

// NormalizeStatus strips the storage prefix from a status tag
func NormalizeStatus(status string) string {
	return strings.TrimPrefix(strings.TrimSpace(status), statusPrefix)
}

// IsConfigured reports whether both the endpoint and the secret are set
func IsConfigured(settings *models.SyncSettings) bool {
	return settings != nil &&
		strings.TrimSpace(settings.EndpointBaseURL) != "" &&
		strings.TrimSpace(settings.WebhookSecret) != ""
}

// ShouldSync decides whether order qualifies for a sync attempt. Forced
// syncs skip the status allow-list but never the configuration check.
func ShouldSync(order *models.Order, settings *models.SyncSettings, force bool) Decision {
	if !IsConfigured(settings) {
		return Decision{Reason: ReasonNotConfigured, Record: true}
	}

	if !force && !statusAllowed(NormalizeStatus(order.Status), settings.SyncOnStatus) {
		return Decision{Reason: ReasonStatusNotAllowed}
	}

	return Decision{Proceed: true}
}

func statusAllowed(status string, allowed []string) bool {
	for _, s := range allowed {
		if NormalizeStatus(s) == status {
			return true
		}
	}
	return false
}
