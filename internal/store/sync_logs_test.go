package store

import (
	"context"
	"testing"
	"time"

	"order-sync-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestOrder(t *testing.T, s *Store) *models.Order {
	t.Helper()

	order := &models.Order{OrderNumber: "A-1", Status: models.OrderStatusCompleted}
	require.NoError(t, s.CreateOrder(context.Background(), order, nil))
	return order
}

func appendLog(t *testing.T, s *Store, orderID int64, status string, at time.Time) *models.SyncLog {
	t.Helper()

	entry := &models.SyncLog{
		OrderID:       orderID,
		SyncStatus:    status,
		SyncTime:      at,
		ExecutionTime: 0.5,
		TriggerSource: models.TriggerManual,
	}
	require.NoError(t, s.AppendSyncLog(context.Background(), entry))
	return entry
}

func TestRecordSyncAttemptSuccessMarksOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := createTestOrder(t, s)

	code := 200
	entry := &models.SyncLog{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		ProductsData:    `[{"sku":"X","name":"X"}]`,
		SyncStatus:      models.SyncStatusSuccess,
		ResponseCode:    &code,
		ResponseMessage: "Sync completed successfully",
		TriggerSource:   models.TriggerStatusChange,
	}
	require.NoError(t, s.RecordSyncAttempt(ctx, entry, true))
	assert.NotZero(t, entry.ID)
	assert.NotEmpty(t, entry.AttemptID)

	got, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	require.NotNil(t, got.SyncedAt)
	assert.WithinDuration(t, entry.SyncTime, *got.SyncedAt, time.Millisecond)

	stored, err := s.GetSyncLogByID(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResponseCode)
	assert.Equal(t, 200, *stored.ResponseCode)
	assert.Equal(t, models.TriggerStatusChange, stored.TriggerSource)
}

func TestRecordSyncAttemptFailureKeepsSyncedFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := createTestOrder(t, s)

	require.NoError(t, s.RecordSyncAttempt(ctx, &models.SyncLog{
		OrderID: order.ID, SyncStatus: models.SyncStatusSuccess,
	}, true))

	failed := &models.SyncLog{OrderID: order.ID, SyncStatus: models.SyncStatusFailed, ResponseMessage: "timeout"}
	require.NoError(t, s.RecordSyncAttempt(ctx, failed, false))

	got, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)

	stored, err := s.GetSyncLogByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResponseCode)
	assert.Equal(t, "[]", stored.ProductsData)
}

func TestListSyncLogsOrderingAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := createTestOrder(t, s)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	first := appendLog(t, s, order.ID, models.SyncStatusFailed, base)
	second := appendLog(t, s, order.ID, models.SyncStatusSuccess, base.Add(time.Minute))
	third := appendLog(t, s, order.ID, models.SyncStatusFailed, base.Add(2*time.Minute))

	logs, err := s.ListSyncLogs(ctx, models.SyncLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{logs[0].ID, logs[1].ID, logs[2].ID})

	failed, err := s.ListSyncLogs(ctx, models.SyncLogFilter{Status: models.SyncStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, third.ID, failed[0].ID)

	page, err := s.ListSyncLogs(ctx, models.SyncLogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	total, err := s.CountSyncLogs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	failedCount, err := s.CountSyncLogs(ctx, models.SyncStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), failedCount)
}

func TestGetSyncLogsByOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := createTestOrder(t, s)
	other := createTestOrder(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		appendLog(t, s, order.ID, models.SyncStatusFailed, base.Add(time.Duration(i)*time.Second))
	}
	appendLog(t, s, other.ID, models.SyncStatusSuccess, base)

	logs, err := s.GetSyncLogsByOrder(ctx, order.ID, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 10)
	for _, l := range logs {
		assert.Equal(t, order.ID, l.OrderID)
	}

	latest, err := s.GetLatestSyncLog(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, logs[0].ID, latest.ID)

	none, err := s.GetLatestSyncLog(ctx, order.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.GetSyncLogByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeSyncLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := createTestOrder(t, s)

	at := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	old := appendLog(t, s, order.ID, models.SyncStatusFailed, at.Add(-40*24*time.Hour))
	appendLog(t, s, order.ID, models.SyncStatusSuccess, at.Add(-31*24*time.Hour))
	recent := appendLog(t, s, order.ID, models.SyncStatusSuccess, at.Add(-2*24*time.Hour))

	deleted, err := s.PurgeSyncLogs(ctx, 30, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = s.GetSyncLogByID(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSyncLogByID(ctx, recent.ID)
	assert.NoError(t, err)

	_, err = s.PurgeSyncLogs(ctx, -1, at)
	assert.Error(t, err)

	deleted, err = s.PurgeSyncLogs(ctx, 0, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	total, err := s.CountSyncLogs(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGetSyncStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	order := createTestOrder(t, s)

	at := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	appendLog(t, s, order.ID, models.SyncStatusSuccess, at.Add(-time.Hour))
	appendLog(t, s, order.ID, models.SyncStatusFailed, at.Add(-2*time.Hour))
	appendLog(t, s, order.ID, models.SyncStatusSuccess, at.Add(-26*time.Hour))
	appendLog(t, s, order.ID, models.SyncStatusFailed, at.Add(-10*24*time.Hour))
	require.NoError(t, s.AppendSyncLog(ctx, &models.SyncLog{
		OrderID: order.ID, SyncStatus: models.SyncStatusPending, SyncTime: at.Add(-3 * time.Hour),
	}))

	stats, err := s.GetSyncStats(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(2), stats.Success)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(4), stats.Recent)
	assert.InDelta(t, 0.5, stats.AvgExecutionTime, 0.0001)

	require.Len(t, stats.Daily, 2)
	assert.Equal(t, "2024-06-30", stats.Daily[0].Date)
	assert.Equal(t, int64(3), stats.Daily[0].Total)
	assert.Equal(t, int64(1), stats.Daily[0].Success)
	assert.Equal(t, int64(1), stats.Daily[0].Failed)
	assert.Equal(t, "2024-06-29", stats.Daily[1].Date)
	assert.Equal(t, int64(1), stats.Daily[1].Success)
}

func TestGetSyncStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetSyncStats(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AvgExecutionTime)
	assert.Empty(t, stats.Daily)
}
