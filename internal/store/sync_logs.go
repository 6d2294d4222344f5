package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-sync-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultLogLimit = 20
	statsWindow     = 7 * 24 * time.Hour
)

func insertSyncLog(ctx context.Context, ext sqlx.ExtContext, entry *models.SyncLog) error {
	if entry.AttemptID == "" {
		entry.AttemptID = uuid.New().String()
	}
	if entry.SyncTime.IsZero() {
		entry.SyncTime = now()
	}
	entry.SyncTime = entry.SyncTime.UTC()
	if entry.ProductsData == "" {
		entry.ProductsData = "[]"
	}

	query := ext.Rebind(`
		INSERT INTO sync_logs (attempt_id, order_id, order_number, customer_email, customer_name, products_data,
			sync_status, response_code, response_message, response_data, sync_time, execution_time, retry_count, trigger_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	return sqlx.GetContext(ctx, ext, &entry.ID, query,
		entry.AttemptID, entry.OrderID, entry.OrderNumber, entry.CustomerEmail, entry.CustomerName, entry.ProductsData,
		entry.SyncStatus, entry.ResponseCode, entry.ResponseMessage, entry.ResponseData, entry.SyncTime,
		entry.ExecutionTime, entry.RetryCount, entry.TriggerSource)
}

// AppendSyncLog inserts a new sync log row
func (s *Store) AppendSyncLog(ctx context.Context, entry *models.SyncLog) error {
	if err := insertSyncLog(ctx, s.db, entry); err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}
	return nil
}

// RecordSyncAttempt writes the attempt row and, when markSynced is set, stamps
// the order as synced in the same transaction. A failed attempt never clears
// an earlier synced flag.
func (s *Store) RecordSyncAttempt(ctx context.Context, entry *models.SyncLog, markSynced bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertSyncLog(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}

	if markSynced {
		_, err = tx.ExecContext(ctx,
			tx.Rebind("UPDATE orders SET synced = ?, synced_at = ?, updated_at = ? WHERE id = ?"),
			true, entry.SyncTime, entry.SyncTime, entry.OrderID)
		if err != nil {
			return fmt.Errorf("failed to mark order synced: %w", err)
		}
	}

	return tx.Commit()
}

// ListSyncLogs returns a page of sync logs, newest first
func (s *Store) ListSyncLogs(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT * FROM sync_logs"
	args := []interface{}{}
	if filter.Status != "" {
		query += " WHERE sync_status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY sync_time DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	logs := []models.SyncLog{}
	err := s.db.SelectContext(ctx, &logs, s.db.Rebind(query), args...)
	return logs, err
}

// CountSyncLogs counts sync logs, optionally filtered by status
func (s *Store) CountSyncLogs(ctx context.Context, status string) (int64, error) {
	query := "SELECT COUNT(*) FROM sync_logs"
	args := []interface{}{}
	if status != "" {
		query += " WHERE sync_status = ?"
		args = append(args, status)
	}

	var count int64
	err := s.db.GetContext(ctx, &count, s.db.Rebind(query), args...)
	return count, err
}

// GetSyncLogsByOrder returns the most recent sync logs of an order
func (s *Store) GetSyncLogsByOrder(ctx context.Context, orderID int64, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 10
	}

	logs := []models.SyncLog{}
	err := s.db.SelectContext(ctx, &logs,
		s.db.Rebind("SELECT * FROM sync_logs WHERE order_id = ? ORDER BY sync_time DESC, id DESC LIMIT ?"),
		orderID, limit)
	return logs, err
}

// GetLatestSyncLog returns the most recent sync log of an order, or nil
func (s *Store) GetLatestSyncLog(ctx context.Context, orderID int64) (*models.SyncLog, error) {
	var entry models.SyncLog
	err := s.db.GetContext(ctx, &entry,
		s.db.Rebind("SELECT * FROM sync_logs WHERE order_id = ? ORDER BY sync_time DESC, id DESC LIMIT 1"),
		orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetSyncLogByID retrieves a sync log by ID
func (s *Store) GetSyncLogByID(ctx context.Context, id int64) (*models.SyncLog, error) {
	var entry models.SyncLog
	err := s.db.GetContext(ctx, &entry, s.db.Rebind("SELECT * FROM sync_logs WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sync log %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PurgeSyncLogs deletes logs older than days; days == 0 deletes every row.
func (s *Store) PurgeSyncLogs(ctx context.Context, days int, at time.Time) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("days must be >= 0, got %d", days)
	}

	var (
		res sql.Result
		err error
	)
	if days > 0 {
		cutoff := at.UTC().Add(-time.Duration(days) * 24 * time.Hour)
		res, err = s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sync_logs WHERE sync_time < ?"), cutoff)
	} else {
		res, err = s.db.ExecContext(ctx, "DELETE FROM sync_logs")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync logs: %w", err)
	}

	return res.RowsAffected()
}

// GetSyncStats aggregates the sync log relative to at
func (s *Store) GetSyncStats(ctx context.Context, at time.Time) (*models.SyncStats, error) {
	since := at.UTC().Add(-statsWindow)

	var counts struct {
		Total   int64 `db:"total"`
		Success int64 `db:"success"`
		Failed  int64 `db:"failed"`
		Pending int64 `db:"pending"`
		Recent  int64 `db:"recent"`
	}
	err := s.db.GetContext(ctx, &counts, s.db.Rebind(`
		SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN sync_status = 'success' THEN 1 ELSE 0 END), 0) AS success,
			COALESCE(SUM(CASE WHEN sync_status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN sync_status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN sync_time >= ? THEN 1 ELSE 0 END), 0) AS recent
		FROM sync_logs`), since)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync logs: %w", err)
	}

	var avg float64
	err = s.db.GetContext(ctx, &avg,
		"SELECT COALESCE(AVG(execution_time), 0.0) FROM sync_logs WHERE execution_time > 0")
	if err != nil {
		return nil, fmt.Errorf("failed to average execution time: %w", err)
	}

	var recent []struct {
		SyncTime   time.Time `db:"sync_time"`
		SyncStatus string    `db:"sync_status"`
	}
	err = s.db.SelectContext(ctx, &recent,
		s.db.Rebind("SELECT sync_time, sync_status FROM sync_logs WHERE sync_time >= ? ORDER BY sync_time DESC"),
		since)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent sync logs: %w", err)
	}

	// rows arrive newest first, so days are appended newest first too
	daily := []models.DailySyncStats{}
	for _, row := range recent {
		date := row.SyncTime.UTC().Format("2006-01-02")
		if len(daily) == 0 || daily[len(daily)-1].Date != date {
			daily = append(daily, models.DailySyncStats{Date: date})
		}
		day := &daily[len(daily)-1]
		day.Total++
		switch row.SyncStatus {
		case models.SyncStatusSuccess:
			day.Success++
		case models.SyncStatusFailed:
			day.Failed++
		}
	}

	return &models.SyncStats{
		Total:            counts.Total,
		Success:          counts.Success,
		Failed:           counts.Failed,
		Pending:          counts.Pending,
		Recent:           counts.Recent,
		AvgExecutionTime: avg,
		Daily:            daily,
	}, nil
}
