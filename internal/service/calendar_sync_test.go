package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct {
	creds *CalendarCredentials
	err   error
}

func (f *fakeTokenSource) GetValidAccessToken(ctx context.Context, tenantID int64) (*CalendarCredentials, error) {
	return f.creds, f.err
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:            7,
		TenantID:      42,
		StartAt:       time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		DurationMin:   30,
		Timezone:      "Europe/Berlin",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
		CustomerPhone: "+49 30 1234567",
		ServiceName:   "Haircut",
		Notes:         "first visit",
		TraceID:       "trace-1",
	}
}

func TestSyncBookingNotConnected(t *testing.T) {
	o := NewCalendarSyncOrchestrator(&fakeTokenSource{err: ErrNotConnected}, nil)

	result := o.SyncBooking(context.Background(), testBooking())

	assert.Equal(t, models.SyncStatusSkipped, result.Status)
	assert.Equal(t, "not connected", result.Reason)
}

func TestSyncBookingCreatesEvent(t *testing.T) {
	var gotPath, gotAuth string
	var gotEvent CalendarEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"evt-123"}`))
	}))
	defer srv.Close()

	client := NewCalendarClient(srv.URL, srv.Client())
	o := NewCalendarSyncOrchestrator(&fakeTokenSource{
		creds: &CalendarCredentials{AccessToken: "tok-1", CalendarID: "work"},
	}, client)

	result := o.SyncBooking(context.Background(), testBooking())

	require.Equal(t, models.SyncStatusSynced, result.Status)
	assert.Equal(t, "evt-123", result.EventID)

	assert.Equal(t, "/calendars/work/events", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "Haircut: Jane Doe", gotEvent.Summary)
	assert.Contains(t, gotEvent.Description, "Email: jane@x.com")
	assert.Contains(t, gotEvent.Description, "Phone: +49 30 1234567")
	assert.Contains(t, gotEvent.Description, "Notes: first visit")
	assert.Equal(t, "Europe/Berlin", gotEvent.Start.TimeZone)
	assert.Equal(t, "2025-03-10T10:00:00Z", gotEvent.Start.DateTime)
	assert.Equal(t, "2025-03-10T10:30:00Z", gotEvent.End.DateTime)
}

func TestSyncBookingDefaultsToPrimaryCalendar(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"evt-456"}`))
	}))
	defer srv.Close()

	o := NewCalendarSyncOrchestrator(&fakeTokenSource{
		creds: &CalendarCredentials{AccessToken: "tok-1"},
	}, NewCalendarClient(srv.URL, srv.Client()))

	result := o.SyncBooking(context.Background(), testBooking())

	assert.Equal(t, models.SyncStatusSynced, result.Status)
	assert.Equal(t, "/calendars/primary/events", gotPath)
}

func TestSyncBookingRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"backend unavailable"}}`))
	}))
	defer srv.Close()

	o := NewCalendarSyncOrchestrator(&fakeTokenSource{
		creds: &CalendarCredentials{AccessToken: "tok-1", CalendarID: "work"},
	}, NewCalendarClient(srv.URL, srv.Client()))

	result := o.SyncBooking(context.Background(), testBooking())

	assert.Equal(t, models.SyncStatusFailed, result.Status)
	// The remote error payload is captured verbatim for operator diagnosis.
	assert.Contains(t, result.Reason, "503")
	assert.Contains(t, result.Reason, "backend unavailable")
}

func TestSyncBookingTokenFailure(t *testing.T) {
	o := NewCalendarSyncOrchestrator(&fakeTokenSource{err: ErrTokenRefresh}, nil)

	result := o.SyncBooking(context.Background(), testBooking())

	assert.Equal(t, models.SyncStatusFailed, result.Status)
	assert.NotEmpty(t, result.Reason)
}

func TestBuildEventPayloadOmitsAbsentFields(t *testing.T) {
	booking := testBooking()
	booking.ServiceName = ""
	booking.CustomerPhone = ""
	booking.Notes = ""

	event := buildEventPayload(booking)

	assert.Equal(t, "Jane Doe", event.Summary)
	assert.NotContains(t, event.Description, "Phone:")
	assert.NotContains(t, event.Description, "Notes:")
	assert.Contains(t, event.Description, "Email: jane@x.com")
}
