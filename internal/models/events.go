package models

import "time"

// Event types
const (
	EventTypeBookingCreated     = "BOOKING_CREATED"
	EventTypeCalendarSynced     = "CALENDAR_SYNCED"
	EventTypeCalendarSyncFailed = "CALENDAR_SYNC_FAILED"
	EventTypeBookingNotified    = "BOOKING_NOTIFIED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCreatedEvent published when the core booking row is persisted
type BookingCreatedEvent struct {
	BaseEvent
	BookingID     int64     `json:"booking_id"`
	TenantID      int64     `json:"tenant_id"`
	CustomerEmail string    `json:"customer_email"`
	StartAt       time.Time `json:"start_at"`
	DurationMin   int       `json:"duration_min"`
	Price         int64     `json:"price"`
}

// CalendarSyncedEvent published when a remote calendar event was created
type CalendarSyncedEvent struct {
	BaseEvent
	BookingID       int64  `json:"booking_id"`
	TenantID        int64  `json:"tenant_id"`
	CalendarEventID string `json:"calendar_event_id"`
}

// CalendarSyncFailedEvent published when the remote create-event call failed.
// Consumed by the retry worker for out-of-band reconciliation. Attempt counts
// the sync attempts made so far, so consumers can stop re-arming the retry.
type CalendarSyncFailedEvent struct {
	BaseEvent
	BookingID int64  `json:"booking_id"`
	TenantID  int64  `json:"tenant_id"`
	Reason    string `json:"reason"`
	Attempt   int    `json:"attempt"`
}

// BookingNotifiedEvent published after the confirmation emails were attempted
type BookingNotifiedEvent struct {
	BaseEvent
	BookingID    int64 `json:"booking_id"`
	TenantID     int64 `json:"tenant_id"`
	CustomerSent bool  `json:"customer_sent"`
	AdminSent    bool  `json:"admin_sent"`
}
