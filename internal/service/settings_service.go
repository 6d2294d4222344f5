package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"order-sync-service/internal/models"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"
	"order-sync-service/internal/webhook"

	"go.uber.org/zap"
)

const minSecretLength = 10

// UpdateSettingsRequest replaces the sync settings
type UpdateSettingsRequest struct {
	EndpointBaseURL string   `json:"endpoint_base_url" validate:"omitempty,url"`
	WebhookSecret   *string  `json:"webhook_secret"`
	SyncOnStatus    []string `json:"sync_on_status" validate:"dive,required,max=30"`
}

// SettingsView is the settings as shown to operators, with the secret masked
type SettingsView struct {
	EndpointBaseURL string   `json:"endpoint_base_url"`
	WebhookSecret   string   `json:"webhook_secret"`
	SecretSet       bool     `json:"webhook_secret_set"`
	SyncOnStatus    []string `json:"sync_on_status"`
	Configured      bool     `json:"configured"`
	SyncEndpoint    string   `json:"sync_endpoint,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// SettingsService manages the sync settings and the connectivity probe
type SettingsService struct {
	store  *store.Store
	prober *webhook.Client
	logger *zap.Logger
}

// NewSettingsService creates a new settings service. prober should carry the
// shorter probe timeout.
func NewSettingsService(store *store.Store, prober *webhook.Client) *SettingsService {
	return &SettingsService{
		store:  store,
		prober: prober,
		logger: util.GetLogger(),
	}
}

// Settings returns the current settings with the secret masked
func (s *SettingsService) Settings(ctx context.Context) (*SettingsView, error) {
	settings, err := s.store.GetSyncSettings(ctx)
	if err != nil {
		return nil, err
	}
	return newSettingsView(settings), nil
}

// UpdateSettings saves new settings. A nil secret keeps the stored one.
func (s *SettingsService) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*SettingsView, error) {
	ctx, span := util.StartSpan(ctx, "SettingsService.UpdateSettings")
	defer span.End()

	current, err := s.store.GetSyncSettings(ctx)
	if err != nil {
		return nil, err
	}

	settings := &models.SyncSettings{
		EndpointBaseURL: strings.TrimSpace(req.EndpointBaseURL),
		WebhookSecret:   current.WebhookSecret,
		SyncOnStatus:    make([]string, 0, len(req.SyncOnStatus)),
	}
	if req.WebhookSecret != nil {
		settings.WebhookSecret = strings.TrimSpace(*req.WebhookSecret)
	}
	seen := map[string]bool{}
	for _, status := range req.SyncOnStatus {
		status = NormalizeStatus(status)
		if status == "" || seen[status] {
			continue
		}
		seen[status] = true
		settings.SyncOnStatus = append(settings.SyncOnStatus, status)
	}

	if err := s.store.SaveSyncSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save sync settings: %w", err)
	}

	s.logger.Info("Sync settings updated",
		zap.String("endpoint_base_url", settings.EndpointBaseURL),
		zap.Strings("sync_on_status", settings.SyncOnStatus))

	view := newSettingsView(settings)
	if settings.WebhookSecret != "" && len(settings.WebhookSecret) < minSecretLength {
		view.Warnings = append(view.Warnings,
			fmt.Sprintf("webhook secret is shorter than %d characters", minSecretLength))
	}
	if u, err := url.Parse(settings.EndpointBaseURL); err == nil && u.Scheme == "http" {
		view.Warnings = append(view.Warnings, "endpoint does not use https")
	}
	return view, nil
}

// TestConnection probes the configured endpoint without writing sync logs
func (s *SettingsService) TestConnection(ctx context.Context) (*webhook.ProbeResult, error) {
	ctx, span := util.StartSpan(ctx, "SettingsService.TestConnection")
	defer span.End()

	settings, err := s.store.GetSyncSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !IsConfigured(settings) {
		return nil, ErrNotConfigured
	}

	result := s.prober.Probe(ctx, settings.EndpointBaseURL, settings.WebhookSecret)
	s.logger.Info("Connection test finished",
		zap.Bool("ok", result.OK),
		zap.Int("status_code", result.StatusCode))
	return result, nil
}

func newSettingsView(settings *models.SyncSettings) *SettingsView {
	view := &SettingsView{
		EndpointBaseURL: settings.EndpointBaseURL,
		WebhookSecret:   maskSecret(settings.WebhookSecret),
		SecretSet:       settings.WebhookSecret != "",
		SyncOnStatus:    settings.SyncOnStatus,
		Configured:      IsConfigured(settings),
	}
	if view.Configured {
		view.SyncEndpoint = webhook.EndpointURL(settings.EndpointBaseURL)
	}
	return view
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
