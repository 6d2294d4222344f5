package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-sync-service/internal/models"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	orderLogLimit  = 10
)

// ErrInvalidPurgeDays is returned for a negative purge window
var ErrInvalidPurgeDays = errors.New("days must be 0 or higher")

// LogPage is one page of the sync log
type LogPage struct {
	Logs       []models.SyncLog `json:"logs"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int              `json:"total_pages"`
}

// LogService exposes the sync log to operators
type LogService struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewLogService creates a new log service
func NewLogService(store *store.Store) *LogService {
	return &LogService{
		store:  store,
		logger: util.GetLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListLogs returns one page of the sync log, optionally filtered by status
func (s *LogService) ListLogs(ctx context.Context, status string, page, perPage int) (*LogPage, error) {
	ctx, span := util.StartSpan(ctx, "LogService.ListLogs")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	logs, err := s.store.ListSyncLogs(ctx, models.SyncLogFilter{
		Status: status,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}

	total, err := s.store.CountSyncLogs(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync logs: %w", err)
	}

	return &LogPage{
		Logs:       logs,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	}, nil
}

// OrderLogs returns the most recent attempts for one order
func (s *LogService) OrderLogs(ctx context.Context, orderID int64) ([]models.SyncLog, error) {
	ctx, span := util.StartSpan(ctx, "LogService.OrderLogs")
	defer span.End()

	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}

	return s.store.GetSyncLogsByOrder(ctx, orderID, orderLogLimit)
}

// PurgeLogs deletes attempts older than days, or every attempt when days is 0
func (s *LogService) PurgeLogs(ctx context.Context, days int) (int64, error) {
	ctx, span := util.StartSpan(ctx, "LogService.PurgeLogs")
	defer span.End()

	if days < 0 {
		return 0, ErrInvalidPurgeDays
	}

	deleted, err := s.store.PurgeSyncLogs(ctx, days, s.now())
	if err != nil {
		return 0, err
	}

	util.SyncLogsPurgedTotal.Add(float64(deleted))
	s.logger.Info("Sync logs purged", zap.Int("days", days), zap.Int64("deleted", deleted))
	return deleted, nil
}

// Stats summarizes the sync log
func (s *LogService) Stats(ctx context.Context) (*models.SyncStats, error) {
	ctx, span := util.StartSpan(ctx, "LogService.Stats")
	defer span.End()

	stats, err := s.store.GetSyncStats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get sync stats: %w", err)
	}
	return stats, nil
}
