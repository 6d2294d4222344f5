package store

import (
	"context"
	"encoding/json"
	"fmt"

	"order-sync-service/internal/models"
)

const (
	settingEndpointURL   = "endpoint_base_url"
	settingWebhookSecret = "webhook_secret"
	settingSyncOnStatus  = "sync_on_status"
)

type settingRow struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

// GetSyncSettings loads the sync settings. Missing keys fall back to empty
// values and the default status allow-list.
func (s *Store) GetSyncSettings(ctx context.Context) (*models.SyncSettings, error) {
	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT name, value FROM sync_settings"); err != nil {
		return nil, fmt.Errorf("failed to load sync settings: %w", err)
	}

	settings := &models.SyncSettings{}
	hasStatuses := false
	for _, row := range rows {
		switch row.Name {
		case settingEndpointURL:
			settings.EndpointBaseURL = row.Value
		case settingWebhookSecret:
			settings.WebhookSecret = row.Value
		case settingSyncOnStatus:
			if err := json.Unmarshal([]byte(row.Value), &settings.SyncOnStatus); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", settingSyncOnStatus, err)
			}
			hasStatuses = true
		}
	}
	if !hasStatuses {
		settings.SyncOnStatus = append([]string(nil), models.DefaultSyncOnStatus...)
	}
	if settings.SyncOnStatus == nil {
		settings.SyncOnStatus = []string{}
	}

	return settings, nil
}

// SaveSyncSettings overwrites all sync settings
func (s *Store) SaveSyncSettings(ctx context.Context, settings *models.SyncSettings) error {
	return s.writeSettings(ctx, settings, `
		INSERT INTO sync_settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
}

// EnsureSyncSettings seeds settings that have never been written
func (s *Store) EnsureSyncSettings(ctx context.Context, defaults *models.SyncSettings) error {
	return s.writeSettings(ctx, defaults, `
		INSERT INTO sync_settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO NOTHING`)
}

func (s *Store) writeSettings(ctx context.Context, settings *models.SyncSettings, stmt string) error {
	statuses := settings.SyncOnStatus
	if statuses == nil {
		statuses = []string{}
	}
	encoded, err := json.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", settingSyncOnStatus, err)
	}

	values := []settingRow{
		{Name: settingEndpointURL, Value: settings.EndpointBaseURL},
		{Name: settingWebhookSecret, Value: settings.WebhookSecret},
		{Name: settingSyncOnStatus, Value: string(encoded)},
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := tx.Rebind(stmt)
	ts := now()
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, query, v.Name, v.Value, ts); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", v.Name, err)
		}
	}

	return tx.Commit()
}
