package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"booking-service/config"
	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntegrationStore struct {
	integration *models.CalendarIntegration
	clientCfg   *models.OAuthClientConfig

	updatedToken   string
	updatedRefresh string
	updatedExpiry  time.Time
	updateCalls    int
	upserted       *models.CalendarIntegration
	deleted        bool
}

func (f *fakeIntegrationStore) GetCalendarIntegration(ctx context.Context, tenantID int64) (*models.CalendarIntegration, error) {
	return f.integration, nil
}

func (f *fakeIntegrationStore) UpsertCalendarIntegration(ctx context.Context, integration *models.CalendarIntegration) error {
	f.upserted = integration
	return nil
}

func (f *fakeIntegrationStore) UpdateIntegrationToken(ctx context.Context, tenantID int64, accessToken, refreshToken string, expiry time.Time) error {
	f.updateCalls++
	f.updatedToken = accessToken
	f.updatedRefresh = refreshToken
	f.updatedExpiry = expiry
	return nil
}

func (f *fakeIntegrationStore) DeleteCalendarIntegration(ctx context.Context, tenantID int64) error {
	f.deleted = true
	return nil
}

func (f *fakeIntegrationStore) GetOAuthClientConfig(ctx context.Context) (*models.OAuthClientConfig, error) {
	return f.clientCfg, nil
}

func newTestTokenManager(st *fakeIntegrationStore, tokenURL string) *TokenManager {
	tm := NewTokenManager(st, config.OAuthConfig{
		AuthURL:     "https://provider.test/auth",
		TokenURL:    tokenURL,
		RedirectURL: "https://app.test/callback",
		Scopes:      []string{"calendar.events"},
	}, 5*time.Second)
	return tm
}

func TestGetValidAccessTokenNotConnected(t *testing.T) {
	st := &fakeIntegrationStore{integration: nil, clientCfg: &models.OAuthClientConfig{}}
	tm := newTestTokenManager(st, "https://provider.test/token")

	_, err := tm.GetValidAccessToken(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotConnected)

	st.integration = &models.CalendarIntegration{TenantID: 42, Connected: false}
	_, err = tm.GetValidAccessToken(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestGetValidAccessTokenUnexpired(t *testing.T) {
	st := &fakeIntegrationStore{
		integration: &models.CalendarIntegration{
			TenantID:    42,
			AccessToken: "stored-token",
			TokenExpiry: time.Now().Add(30 * time.Minute),
			CalendarID:  "work",
			Connected:   true,
		},
		clientCfg: &models.OAuthClientConfig{ClientID: "cid", ClientSecret: "secret"},
	}
	tm := newTestTokenManager(st, "https://provider.test/token")

	creds, err := tm.GetValidAccessToken(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "stored-token", creds.AccessToken)
	assert.Equal(t, "work", creds.CalendarID)
	assert.Zero(t, st.updateCalls, "no refresh exchange for an unexpired token")
}

func TestGetValidAccessTokenRefreshesExpired(t *testing.T) {
	var exchanges int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "stored-refresh", r.FormValue("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":120,"refresh_token":"rotated-refresh"}`))
	}))
	defer srv.Close()

	st := &fakeIntegrationStore{
		integration: &models.CalendarIntegration{
			TenantID:     42,
			AccessToken:  "stale-token",
			RefreshToken: "stored-refresh",
			TokenExpiry:  time.Now().Add(-time.Minute),
			CalendarID:   "primary",
			Connected:    true,
		},
		clientCfg: &models.OAuthClientConfig{ClientID: "cid", ClientSecret: "secret"},
	}
	tm := newTestTokenManager(st, srv.URL)

	before := time.Now()
	creds, err := tm.GetValidAccessToken(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "fresh-token", creds.AccessToken)
	assert.Equal(t, 1, exchanges, "exactly one refresh exchange")
	assert.Equal(t, 1, st.updateCalls)
	assert.Equal(t, "fresh-token", st.updatedToken)

	// Fixed conservative window, not the provider's 120s expires_in.
	assert.WithinDuration(t, before.Add(time.Hour), st.updatedExpiry, 5*time.Second)
}

func TestGetValidAccessTokenRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	st := &fakeIntegrationStore{
		integration: &models.CalendarIntegration{
			TenantID:     42,
			AccessToken:  "stale-token",
			RefreshToken: "revoked-refresh",
			TokenExpiry:  time.Now().Add(-time.Minute),
			Connected:    true,
		},
		clientCfg: &models.OAuthClientConfig{ClientID: "cid", ClientSecret: "secret"},
	}
	tm := newTestTokenManager(st, srv.URL)

	_, err := tm.GetValidAccessToken(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenRefresh)

	// The stored row is left untouched so a later attempt can retry cleanly.
	assert.Zero(t, st.updateCalls)
}

func TestCompleteConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "auth-code-1", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"first-token","token_type":"Bearer","refresh_token":"first-refresh","expires_in":3600}`))
	}))
	defer srv.Close()

	st := &fakeIntegrationStore{
		clientCfg: &models.OAuthClientConfig{ClientID: "cid", ClientSecret: "secret"},
	}
	tm := newTestTokenManager(st, srv.URL)

	err := tm.CompleteConnect(context.Background(), 42, "auth-code-1")
	require.NoError(t, err)

	require.NotNil(t, st.upserted)
	assert.Equal(t, int64(42), st.upserted.TenantID)
	assert.Equal(t, "first-token", st.upserted.AccessToken)
	assert.Equal(t, "first-refresh", st.upserted.RefreshToken)
	assert.Equal(t, models.DefaultCalendarID, st.upserted.CalendarID)
	assert.True(t, st.upserted.Connected)
}

func TestDisconnect(t *testing.T) {
	st := &fakeIntegrationStore{
		integration: &models.CalendarIntegration{TenantID: 42, Connected: true},
		clientCfg:   &models.OAuthClientConfig{},
	}
	tm := newTestTokenManager(st, "https://provider.test/token")

	require.NoError(t, tm.Disconnect(context.Background(), 42))
	assert.True(t, st.deleted)
}
