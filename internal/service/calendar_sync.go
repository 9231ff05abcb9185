package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// SyncResult describes the outcome of one calendar sync attempt.
type SyncResult struct {
	Status  string // models.SyncStatusSynced, SyncStatusSkipped or SyncStatusFailed
	EventID string
	Reason  string
}

type tokenSource interface {
	GetValidAccessToken(ctx context.Context, tenantID int64) (*CalendarCredentials, error)
}

// CalendarSyncOrchestrator creates (or skips) a remote calendar event for a
// booking. Every failure is converted into a SyncResult; nothing thrown here
// may abort the booking creation.
type CalendarSyncOrchestrator struct {
	tokens   tokenSource
	calendar CalendarAPI
	logger   *zap.Logger
}

// NewCalendarSyncOrchestrator creates a new calendar sync orchestrator
func NewCalendarSyncOrchestrator(tokens tokenSource, calendar CalendarAPI) *CalendarSyncOrchestrator {
	return &CalendarSyncOrchestrator{
		tokens:   tokens,
		calendar: calendar,
		logger:   util.GetLogger(),
	}
}

// SyncBooking attempts to create the remote calendar event for a booking.
func (o *CalendarSyncOrchestrator) SyncBooking(ctx context.Context, booking *models.Booking) SyncResult {
	ctx, span := util.StartSpan(ctx, "CalendarSync.SyncBooking")
	defer span.End()

	creds, err := o.tokens.GetValidAccessToken(ctx, booking.TenantID)
	if errors.Is(err, ErrNotConnected) {
		// The common case for tenants who never configured the integration.
		util.CalendarSyncTotal.WithLabelValues("skipped").Inc()
		o.logger.Info("Calendar sync skipped",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("tenant_id", booking.TenantID),
			zap.String("trace_id", booking.TraceID))
		return SyncResult{Status: models.SyncStatusSkipped, Reason: "not connected"}
	}
	if err != nil {
		return o.failed(booking, err)
	}

	calendarID := creds.CalendarID
	if calendarID == "" {
		calendarID = models.DefaultCalendarID
	}

	start := time.Now()
	eventID, err := o.calendar.CreateEvent(ctx, creds.AccessToken, calendarID, buildEventPayload(booking))
	util.CalendarSyncLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return o.failed(booking, err)
	}

	util.CalendarSyncTotal.WithLabelValues("synced").Inc()
	o.logger.Info("Calendar event created",
		zap.Int64("booking_id", booking.ID),
		zap.String("event_id", eventID),
		zap.String("trace_id", booking.TraceID))

	return SyncResult{Status: models.SyncStatusSynced, EventID: eventID}
}

func (o *CalendarSyncOrchestrator) failed(booking *models.Booking, err error) SyncResult {
	util.CalendarSyncTotal.WithLabelValues("failed").Inc()
	o.logger.Error("Calendar sync failed",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("tenant_id", booking.TenantID),
		zap.String("step", "calendar_sync"),
		zap.String("trace_id", booking.TraceID),
		zap.Error(err))
	return SyncResult{Status: models.SyncStatusFailed, Reason: err.Error()}
}

// buildEventPayload assembles the remote event from the booking. Optional
// contact fields are appended to the description only when present.
func buildEventPayload(booking *models.Booking) *CalendarEvent {
	title := booking.CustomerName
	if booking.ServiceName != "" {
		title = fmt.Sprintf("%s: %s", booking.ServiceName, booking.CustomerName)
	}

	lines := []string{fmt.Sprintf("Customer: %s", booking.CustomerName)}
	if booking.CustomerEmail != "" {
		lines = append(lines, fmt.Sprintf("Email: %s", booking.CustomerEmail))
	}
	if booking.CustomerPhone != "" {
		lines = append(lines, fmt.Sprintf("Phone: %s", booking.CustomerPhone))
	}
	if booking.Notes != "" {
		lines = append(lines, fmt.Sprintf("Notes: %s", booking.Notes))
	}

	return &CalendarEvent{
		Summary:     title,
		Description: strings.Join(lines, "\n"),
		Start: EventTime{
			DateTime: booking.StartAt.Format(time.RFC3339),
			TimeZone: booking.Timezone,
		},
		End: EventTime{
			DateTime: booking.EndAt().Format(time.RFC3339),
			TimeZone: booking.Timezone,
		},
	}
}
