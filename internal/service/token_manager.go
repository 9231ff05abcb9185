package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"booking-service/config"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrNotConnected means the tenant never connected a calendar or has
	// disconnected it. A legitimate "feature disabled" state, not a failure.
	ErrNotConnected = errors.New("calendar not connected")

	// ErrTokenRefresh means the refresh-token exchange failed (revoked token,
	// provider outage). The stored credential row is left untouched.
	ErrTokenRefresh = errors.New("token refresh failed")
)

// Refreshed tokens get a fixed conservative expiry regardless of what the
// provider reports, to tolerate clock skew between us and the provider.
const accessTokenTTL = time.Hour

// expirySkew forces a refresh slightly before the stored expiry so an
// in-flight calendar call never carries a token about to lapse.
const expirySkew = 30 * time.Second

type integrationStore interface {
	GetCalendarIntegration(ctx context.Context, tenantID int64) (*models.CalendarIntegration, error)
	UpsertCalendarIntegration(ctx context.Context, integration *models.CalendarIntegration) error
	UpdateIntegrationToken(ctx context.Context, tenantID int64, accessToken, refreshToken string, expiry time.Time) error
	DeleteCalendarIntegration(ctx context.Context, tenantID int64) error
	GetOAuthClientConfig(ctx context.Context) (*models.OAuthClientConfig, error)
}

// CalendarCredentials is what a caller needs to talk to the remote calendar.
type CalendarCredentials struct {
	AccessToken string
	CalendarID  string
}

// TokenManager owns the per-tenant OAuth credential lifecycle for the
// calendar integration. It is the single writer of calendar_integrations.
type TokenManager struct {
	store      integrationStore
	oauthCfg   config.OAuthConfig
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(store integrationStore, oauthCfg config.OAuthConfig, timeout time.Duration) *TokenManager {
	return &TokenManager{
		store:      store,
		oauthCfg:   oauthCfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
		now:        time.Now,
	}
}

// GetValidAccessToken returns a usable access token for the tenant, refreshing
// and persisting it inline when the stored one has expired. Refresh is
// deliberately unsynchronized across concurrent requests; providers issue a
// fresh valid token on each exchange, so last-write-wins is safe.
func (tm *TokenManager) GetValidAccessToken(ctx context.Context, tenantID int64) (*CalendarCredentials, error) {
	ctx, span := util.StartSpan(ctx, "TokenManager.GetValidAccessToken")
	defer span.End()

	integration, err := tm.store.GetCalendarIntegration(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar integration: %w", err)
	}
	if integration == nil || !integration.Connected {
		return nil, ErrNotConnected
	}

	if integration.TokenExpiry.After(tm.now().Add(expirySkew)) {
		return &CalendarCredentials{
			AccessToken: integration.AccessToken,
			CalendarID:  integration.CalendarID,
		}, nil
	}

	token, err := tm.refresh(ctx, integration)
	if err != nil {
		util.TokenRefreshTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	util.TokenRefreshTotal.WithLabelValues("success").Inc()

	expiry := tm.now().Add(accessTokenTTL)
	if err := tm.store.UpdateIntegrationToken(ctx, tenantID, token.AccessToken, token.RefreshToken, expiry); err != nil {
		// The fresh token is still valid for this request; the next caller
		// will simply refresh again.
		tm.logger.Error("Failed to persist refreshed token",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err))
	}

	tm.logger.Info("Access token refreshed",
		zap.Int64("tenant_id", tenantID),
		zap.Time("expiry", expiry))

	return &CalendarCredentials{
		AccessToken: token.AccessToken,
		CalendarID:  integration.CalendarID,
	}, nil
}

// refresh exchanges the stored refresh token for a new access token. The
// stored row is not mutated here so a failed exchange can be retried cleanly.
func (tm *TokenManager) refresh(ctx context.Context, integration *models.CalendarIntegration) (*oauth2.Token, error) {
	conf, err := tm.oauthConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, tm.httpClient)
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: integration.RefreshToken}).Token()
	if err != nil {
		tm.logger.Warn("Refresh-token exchange failed",
			zap.Int64("tenant_id", integration.TenantID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	return token, nil
}

// AuthCodeURL builds the provider authorization URL for the connect flow.
func (tm *TokenManager) AuthCodeURL(ctx context.Context, state string) (string, error) {
	conf, err := tm.oauthConfig(ctx)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// CompleteConnect exchanges the authorization code and creates (or replaces)
// the tenant's credential row.
func (tm *TokenManager) CompleteConnect(ctx context.Context, tenantID int64, code string) error {
	conf, err := tm.oauthConfig(ctx)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, tm.httpClient)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("authorization code exchange failed: %w", err)
	}

	integration := &models.CalendarIntegration{
		TenantID:     tenantID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  tm.now().Add(accessTokenTTL),
		CalendarID:   models.DefaultCalendarID,
		Connected:    true,
	}
	if err := tm.store.UpsertCalendarIntegration(ctx, integration); err != nil {
		return fmt.Errorf("failed to persist calendar integration: %w", err)
	}

	tm.logger.Info("Calendar connected", zap.Int64("tenant_id", tenantID))
	return nil
}

// Disconnect deletes the tenant's credential row
func (tm *TokenManager) Disconnect(ctx context.Context, tenantID int64) error {
	if err := tm.store.DeleteCalendarIntegration(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to delete calendar integration: %w", err)
	}
	tm.logger.Info("Calendar disconnected", zap.Int64("tenant_id", tenantID))
	return nil
}

// Status returns the tenant's integration row, or nil when never connected
func (tm *TokenManager) Status(ctx context.Context, tenantID int64) (*models.CalendarIntegration, error) {
	return tm.store.GetCalendarIntegration(ctx, tenantID)
}

func (tm *TokenManager) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	clientCfg, err := tm.store.GetOAuthClientConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth client config: %w", err)
	}

	return &oauth2.Config{
		ClientID:     clientCfg.ClientID,
		ClientSecret: clientCfg.ClientSecret,
		RedirectURL:  tm.oauthCfg.RedirectURL,
		Scopes:       tm.oauthCfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  tm.oauthCfg.AuthURL,
			TokenURL: tm.oauthCfg.TokenURL,
		},
	}, nil
}
