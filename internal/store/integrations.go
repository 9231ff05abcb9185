package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"booking-service/internal/models"
)

// GetCalendarIntegration retrieves the calendar credential row for a tenant.
// Returns nil, nil when the tenant never connected a calendar.
func (s *Store) GetCalendarIntegration(ctx context.Context, tenantID int64) (*models.CalendarIntegration, error) {
	var integration models.CalendarIntegration
	err := s.db.GetContext(ctx, &integration,
		"SELECT * FROM calendar_integrations WHERE tenant_id = $1", tenantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

// UpsertCalendarIntegration creates or replaces a tenant's credential row.
// Used by the connect flow once the authorization handshake completes.
func (s *Store) UpsertCalendarIntegration(ctx context.Context, integration *models.CalendarIntegration) error {
	query := `
		INSERT INTO calendar_integrations
			(tenant_id, access_token, refresh_token, token_expiry, calendar_id, connected)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			calendar_id = EXCLUDED.calendar_id,
			connected = EXCLUDED.connected,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, integration, query,
		integration.TenantID, integration.AccessToken, integration.RefreshToken,
		integration.TokenExpiry, integration.CalendarID, integration.Connected)
}

// UpdateIntegrationToken persists a refreshed access token. The refresh token
// is replaced only when the provider rotated it.
func (s *Store) UpdateIntegrationToken(ctx context.Context, tenantID int64, accessToken, refreshToken string, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calendar_integrations
		SET access_token = $1,
		    refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
		    token_expiry = $3,
		    updated_at = NOW()
		WHERE tenant_id = $4`,
		accessToken, refreshToken, expiry, tenantID)
	return err
}

// DeleteCalendarIntegration removes a tenant's credential row on disconnect
func (s *Store) DeleteCalendarIntegration(ctx context.Context, tenantID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM calendar_integrations WHERE tenant_id = $1", tenantID)
	return err
}

// GetOAuthClientConfig retrieves the platform-wide OAuth client credentials
func (s *Store) GetOAuthClientConfig(ctx context.Context) (*models.OAuthClientConfig, error) {
	var cfg models.OAuthClientConfig
	err := s.db.GetContext(ctx, &cfg,
		"SELECT client_id, client_secret FROM oauth_client_config LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("oauth client config not provisioned")
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
