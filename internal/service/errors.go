package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured means the endpoint URL or webhook secret is blank
	ErrNotConfigured = errors.New("plugin not configured")

	// ErrNoValidSKUs means no line item resolved to a product with a SKU
	ErrNoValidSKUs = errors.New("no products with valid SKUs found")

	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrLogNotFound       = errors.New("sync log not found")
	ErrLogNotRetryable   = errors.New("only failed sync logs of this order can be retried")
	ErrRetryLimitReached = errors.New("retry limit reached")
	ErrRetryTooSoon      = errors.New("retry requested too soon")
	ErrSyncInProgress    = errors.New("sync already in progress for this order")
)

// RetryTooSoonError reports how long the caller has to wait before retrying
type RetryTooSoonError struct {
	Wait time.Duration
}

func (e *RetryTooSoonError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRetryTooSoon, e.Wait.Round(time.Second))
}

func (e *RetryTooSoonError) Is(target error) bool {
	return target == ErrRetryTooSoon
}
