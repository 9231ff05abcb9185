package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"booking-service/config"
	"booking-service/internal/models"
	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStateStore struct {
	states map[string]int64
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]int64)}
}

func (f *fakeStateStore) StoreOAuthState(ctx context.Context, state string, tenantID int64, ttl time.Duration) error {
	f.states[state] = tenantID
	return nil
}

func (f *fakeStateStore) ConsumeOAuthState(ctx context.Context, state string) (int64, error) {
	tenantID := f.states[state]
	delete(f.states, state)
	return tenantID, nil
}

type fakeIntegrationStore struct {
	upserted *models.CalendarIntegration
}

func (f *fakeIntegrationStore) GetCalendarIntegration(ctx context.Context, tenantID int64) (*models.CalendarIntegration, error) {
	return nil, nil
}

func (f *fakeIntegrationStore) UpsertCalendarIntegration(ctx context.Context, integration *models.CalendarIntegration) error {
	f.upserted = integration
	return nil
}

func (f *fakeIntegrationStore) UpdateIntegrationToken(ctx context.Context, tenantID int64, accessToken, refreshToken string, expiry time.Time) error {
	return nil
}

func (f *fakeIntegrationStore) DeleteCalendarIntegration(ctx context.Context, tenantID int64) error {
	return nil
}

func (f *fakeIntegrationStore) GetOAuthClientConfig(ctx context.Context) (*models.OAuthClientConfig, error) {
	return &models.OAuthClientConfig{ClientID: "cid", ClientSecret: "secret"}, nil
}

func newConnectTestRouter(st *fakeIntegrationStore, states *fakeStateStore, tokenURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	tm := service.NewTokenManager(st, config.OAuthConfig{
		AuthURL:     "https://provider.test/auth",
		TokenURL:    tokenURL,
		RedirectURL: "https://app.test/callback",
		Scopes:      []string{"calendar.events"},
	}, 5*time.Second)

	router := gin.New()
	NewHandler(nil, tm, states).SetupRoutes(router)
	return router
}

func TestCalendarConnectIssuesNonceState(t *testing.T) {
	states := newFakeStateStore()
	router := newConnectTestRouter(&fakeIntegrationStore{}, states, "https://provider.test/token")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/42/calendar/connect", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.NotEqual(t, "42", state, "state must be an opaque nonce, not the tenant id")
	assert.Equal(t, int64(42), states.states[state], "nonce must be bound to the tenant server-side")
}

func TestCalendarOAuthCallbackRejectsUnknownState(t *testing.T) {
	router := newConnectTestRouter(&fakeIntegrationStore{}, newFakeStateStore(), "https://provider.test/token")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar/oauth/callback?code=abc&state=999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarOAuthCallbackConsumesState(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-token","refresh_token":"new-refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	st := &fakeIntegrationStore{}
	states := newFakeStateStore()
	states.states["nonce-1"] = 42
	router := newConnectTestRouter(st, states, tokenSrv.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar/oauth/callback?code=abc&state=nonce-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, st.upserted)
	assert.Equal(t, int64(42), st.upserted.TenantID)

	// The nonce is single-use; a replayed callback is rejected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/calendar/oauth/callback?code=abc&state=nonce-1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
