package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"order-sync-service/internal/models"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"
	"order-sync-service/internal/webhook"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	lockTTLPadding = 5 * time.Second
	jobDedupTTL    = 24 * time.Hour
	recordTimeout  = 10 * time.Second
	maxBackoffExp  = 20

	msgSyncCompleted = "Sync completed successfully"
	msgNotConfigured = "Plugin not configured"
)

// Coordinator provides the per-order lock and job deduplication
type Coordinator interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Dispatcher hands sync jobs to the background worker
type Dispatcher interface {
	PublishSyncRequested(ctx context.Context, event *models.OrderSyncRequestedEvent) error
}

// Options tunes delivery and manual retry behavior
type Options struct {
	Timeout time.Duration
	// MaxRetries caps manual retries of one failed attempt chain; 0 disables the cap
	MaxRetries int
	// RetryBackoffBase enforces base*2^retry_count between retries; 0 disables it
	RetryBackoffBase time.Duration
}

// SyncResult is the outcome of one synchronous sync attempt
type SyncResult struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message"`
	LogID        int64      `json:"log_id"`
	ResponseCode *int       `json:"response_code,omitempty"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
}

// BulkSyncResult summarizes a bulk sync request
type BulkSyncResult struct {
	Queued   int `json:"queued"`
	Skipped  int `json:"skipped"`
	NotFound int `json:"not_found"`
}

// SyncService runs sync attempts for orders
type SyncService struct {
	store       *store.Store
	client      *webhook.Client
	coordinator Coordinator
	dispatcher  Dispatcher
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
	inflight    sync.WaitGroup
}

// NewSyncService creates a new sync service. dispatcher may be nil, in which
// case background jobs run in-process.
func NewSyncService(
	store *store.Store,
	client *webhook.Client,
	coordinator Coordinator,
	dispatcher Dispatcher,
	opts Options,
) *SyncService {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &SyncService{
		store:       store,
		client:      client,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		opts:        opts,
		logger:      util.GetLogger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleStatusChange reacts to an order status transition. Qualifying orders
// are queued for delivery and the call returns without waiting for it.
func (s *SyncService) HandleStatusChange(ctx context.Context, orderID int64, oldStatus, newStatus string) error {
	ctx, span := util.StartSpan(ctx, "SyncService.HandleStatusChange")
	defer span.End()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}

	settings, err := s.store.GetSyncSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync settings: %w", err)
	}

	decision := ShouldSync(order, settings, false)
	if !decision.Proceed {
		if decision.Record {
			_, err := s.recordRefusal(ctx, order, models.TriggerStatusChange, 0, msgNotConfigured, decision.Reason)
			return err
		}
		util.SyncJobsSkippedTotal.WithLabelValues(decision.Reason).Inc()
		s.logger.Debug("Status change does not trigger sync",
			zap.Int64("order_id", orderID),
			zap.String("old_status", oldStatus),
			zap.String("new_status", newStatus))
		return nil
	}

	s.dispatch(ctx, &models.OrderSyncRequestedEvent{
		OrderID:   orderID,
		Trigger:   models.TriggerStatusChange,
		OldStatus: NormalizeStatus(oldStatus),
		NewStatus: NormalizeStatus(newStatus),
	})
	return nil
}

// ProcessSyncJob runs the attempt behind a queued sync job. Jobs are
// deduplicated by event id so redelivered messages do not deliver twice.
func (s *SyncService) ProcessSyncJob(ctx context.Context, event *models.OrderSyncRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "SyncService.ProcessSyncJob")
	defer span.End()

	dedupKey := ""
	if event.EventID != "" {
		dedupKey = "sync-job:" + event.EventID
		processed, err := s.coordinator.CheckIdempotencyKey(ctx, dedupKey)
		if err != nil {
			s.logger.Warn("Failed to check sync job key", zap.String("event_id", event.EventID), zap.Error(err))
		} else if processed {
			s.logger.Info("Sync job already processed", zap.String("event_id", event.EventID))
			util.SyncJobsSkippedTotal.WithLabelValues("duplicate").Inc()
			return nil
		}
	}

	order, err := s.loadOrder(ctx, event.OrderID)
	if errors.Is(err, ErrOrderNotFound) {
		s.logger.Warn("Order of sync job no longer exists", zap.Int64("order_id", event.OrderID))
		s.markJobProcessed(ctx, dedupKey, 0)
		return nil
	}
	if err != nil {
		return err
	}

	result, err := s.attempt(ctx, order, event.Trigger, event.Force, 0)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Info("Skipping sync job, order is already being synced", zap.Int64("order_id", order.ID))
		util.SyncJobsSkippedTotal.WithLabelValues("in_progress").Inc()
		return nil
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrNoValidSKUs):
		s.markJobProcessed(ctx, dedupKey, 0)
		return nil
	case err != nil:
		util.SpanError(span, err)
		return err
	}

	var logID int64
	if result != nil {
		logID = result.LogID
	}
	s.markJobProcessed(ctx, dedupKey, logID)
	return nil
}

// SyncNow runs a forced, synchronous sync for an operator
func (s *SyncService) SyncNow(ctx context.Context, orderID int64) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncNow")
	defer span.End()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.attempt(ctx, order, models.TriggerManual, true, 0)
}

// Retry re-runs a failed attempt of orderID. The new attempt is forced and
// carries the next retry count.
func (s *SyncService) Retry(ctx context.Context, orderID, logID int64) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.Retry")
	defer span.End()

	previous, err := s.store.GetSyncLogByID(ctx, logID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrLogNotFound, logID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync log: %w", err)
	}

	if previous.OrderID != orderID || previous.SyncStatus != models.SyncStatusFailed {
		return nil, ErrLogNotRetryable
	}

	if s.opts.MaxRetries > 0 && previous.RetryCount >= s.opts.MaxRetries {
		return nil, fmt.Errorf("%w: %d of %d", ErrRetryLimitReached, previous.RetryCount, s.opts.MaxRetries)
	}

	if wait := s.retryWait(previous); wait > 0 {
		return nil, &RetryTooSoonError{Wait: wait}
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.attempt(ctx, order, models.TriggerRetry, true, previous.RetryCount+1)
}

// BulkSync queues forced syncs for orders that have not been synced yet
func (s *SyncService) BulkSync(ctx context.Context, orderIDs []int64) (*BulkSyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.BulkSync")
	defer span.End()

	settings, err := s.store.GetSyncSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync settings: %w", err)
	}
	if !IsConfigured(settings) {
		return nil, ErrNotConfigured
	}

	result := &BulkSyncResult{}
	seen := make(map[int64]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		order, err := s.loadOrder(ctx, id)
		if errors.Is(err, ErrOrderNotFound) {
			result.NotFound++
			continue
		}
		if err != nil {
			return nil, err
		}

		if order.Synced {
			result.Skipped++
			continue
		}

		s.dispatch(ctx, &models.OrderSyncRequestedEvent{
			OrderID: id,
			Trigger: models.TriggerBulk,
			Force:   true,
		})
		result.Queued++
	}

	s.logger.Info("Bulk sync requested",
		zap.Int("queued", result.Queued),
		zap.Int("skipped", result.Skipped),
		zap.Int("not_found", result.NotFound))

	return result, nil
}

// Wait blocks until in-process background attempts have finished
func (s *SyncService) Wait() {
	s.inflight.Wait()
}

// attempt runs one sync attempt and records it. A logged refusal returns its
// sentinel error after the row is written; a silent skip returns nil, nil.
func (s *SyncService) attempt(ctx context.Context, order *models.Order, trigger string, force bool, retryCount int) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("sync.trigger", trigger),
		attribute.Int("sync.retry_count", retryCount),
	)

	settings, err := s.store.GetSyncSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync settings: %w", err)
	}

	decision := ShouldSync(order, settings, force)
	if !decision.Proceed {
		if decision.Record {
			if _, err := s.recordRefusal(ctx, order, trigger, retryCount, msgNotConfigured, decision.Reason); err != nil {
				return nil, err
			}
			return nil, ErrNotConfigured
		}
		util.SyncJobsSkippedTotal.WithLabelValues(decision.Reason).Inc()
		return nil, nil
	}

	lockKey := fmt.Sprintf("order-sync:%d", order.ID)
	acquired, err := s.coordinator.AcquireLock(ctx, lockKey, s.opts.Timeout+lockTTLPadding)
	switch {
	case err != nil:
		s.logger.Warn("Failed to acquire sync lock, continuing without it",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	case !acquired:
		return nil, ErrSyncInProgress
	default:
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := s.coordinator.ReleaseLock(releaseCtx, lockKey); err != nil {
				s.logger.Warn("Failed to release sync lock", zap.Int64("order_id", order.ID), zap.Error(err))
			}
		}()
	}

	items, err := s.store.GetLineItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	payload, err := BuildPayload(order, items)
	if errors.Is(err, ErrNoValidSKUs) {
		if _, err := s.recordRefusal(ctx, order, trigger, retryCount, ErrNoValidSKUs.Error(), "no_skus"); err != nil {
			return nil, err
		}
		return nil, ErrNoValidSKUs
	}
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	signature := webhook.Sign(body, settings.WebhookSecret)

	entry := s.newEntry(order, payload.Products, trigger, retryCount)

	res, err := s.client.Deliver(ctx, webhook.EndpointURL(settings.EndpointBaseURL), body, signature)
	var transportErr *webhook.TransportError
	switch {
	case errors.As(err, &transportErr):
		entry.SyncStatus = models.SyncStatusFailed
		entry.ResponseMessage = transportErr.Err.Error()
		entry.ExecutionTime = transportErr.Duration.Seconds()
		util.SyncFailuresTotal.WithLabelValues("transport").Inc()
	case err != nil:
		return nil, err
	default:
		code := res.StatusCode
		entry.ResponseCode = &code
		entry.ResponseData = res.Body
		entry.ExecutionTime = res.Duration.Seconds()
		if res.Success() {
			entry.SyncStatus = models.SyncStatusSuccess
			entry.ResponseMessage = msgSyncCompleted
		} else {
			entry.SyncStatus = models.SyncStatusFailed
			entry.ResponseMessage = fmt.Sprintf("HTTP %d: %s", code, res.Body)
			util.SyncFailuresTotal.WithLabelValues("http_status").Inc()
		}
	}
	util.SyncDeliveryLatency.Observe(entry.ExecutionTime)

	success := entry.SyncStatus == models.SyncStatusSuccess
	if !success {
		util.SpanError(span, errors.New(entry.ResponseMessage))
	}
	if err := s.record(ctx, entry, success); err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	s.logger.Info("Sync attempt recorded",
		zap.Int64("order_id", order.ID),
		zap.Int64("log_id", entry.ID),
		zap.String("status", entry.SyncStatus),
		zap.String("trigger", trigger),
		zap.Float64("execution_time", entry.ExecutionTime))

	result := &SyncResult{
		Success:      success,
		Message:      entry.ResponseMessage,
		LogID:        entry.ID,
		ResponseCode: entry.ResponseCode,
	}
	if success {
		syncedAt := entry.SyncTime
		result.SyncedAt = &syncedAt
	}
	return result, nil
}

// recordRefusal writes the failed row of an attempt that never reached delivery
func (s *SyncService) recordRefusal(ctx context.Context, order *models.Order, trigger string, retryCount int, message, reason string) (*models.SyncLog, error) {
	items, err := s.store.GetLineItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	entry := s.newEntry(order, QualifyingProducts(items), trigger, retryCount)
	entry.SyncStatus = models.SyncStatusFailed
	entry.ResponseMessage = message

	if err := s.record(ctx, entry, false); err != nil {
		return nil, err
	}
	util.SyncFailuresTotal.WithLabelValues(reason).Inc()

	s.logger.Warn("Sync refused",
		zap.Int64("order_id", order.ID),
		zap.Int64("log_id", entry.ID),
		zap.String("reason", reason))
	return entry, nil
}

func (s *SyncService) newEntry(order *models.Order, products []models.SyncProduct, trigger string, retryCount int) *models.SyncLog {
	snapshot, err := json.Marshal(products)
	if err != nil {
		snapshot = []byte("[]")
	}

	return &models.SyncLog{
		OrderID:       order.ID,
		OrderNumber:   order.Number(),
		CustomerEmail: order.BillingEmail,
		CustomerName:  CustomerName(order),
		ProductsData:  string(snapshot),
		RetryCount:    retryCount,
		TriggerSource: trigger,
	}
}

// record persists the attempt even when the caller's context is already done
func (s *SyncService) record(ctx context.Context, entry *models.SyncLog, markSynced bool) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	entry.SyncTime = s.now().Truncate(time.Microsecond)
	if err := s.store.RecordSyncAttempt(ctx, entry, markSynced); err != nil {
		return fmt.Errorf("failed to record sync attempt: %w", err)
	}
	util.SyncAttemptsTotal.WithLabelValues(entry.SyncStatus, entry.TriggerSource).Inc()
	return nil
}

// dispatch queues a sync job, running it in-process when the queue is
// unavailable
func (s *SyncService) dispatch(ctx context.Context, event *models.OrderSyncRequestedEvent) {
	if s.dispatcher != nil {
		err := s.dispatcher.PublishSyncRequested(ctx, event)
		if err == nil {
			util.SyncJobsDispatchedTotal.WithLabelValues(event.Trigger).Inc()
			return
		}
		s.logger.Error("Failed to publish sync job, running it in-process",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		jobCtx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout+lockTTLPadding+recordTimeout)
		defer cancel()

		if err := s.ProcessSyncJob(jobCtx, event); err != nil {
			s.logger.Error("In-process sync job failed",
				zap.Int64("order_id", event.OrderID),
				zap.Error(err))
		}
	}()
}

func (s *SyncService) markJobProcessed(ctx context.Context, key string, logID int64) {
	if key == "" {
		return
	}
	if err := s.coordinator.SetIdempotencyKey(ctx, key, logID, jobDedupTTL); err != nil {
		s.logger.Warn("Failed to mark sync job processed", zap.String("key", key), zap.Error(err))
	}
}

func (s *SyncService) retryWait(previous *models.SyncLog) time.Duration {
	if s.opts.RetryBackoffBase <= 0 {
		return 0
	}
	exp := previous.RetryCount
	if exp > maxBackoffExp {
		exp = maxBackoffExp
	}
	earliest := previous.SyncTime.Add(s.opts.RetryBackoffBase * time.Duration(1<<uint(exp)))
	return earliest.Sub(s.now())
}

func (s *SyncService) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}
