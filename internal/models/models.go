package models

import (
	"database/sql"
	"time"
)

// Booking represents a customer appointment
type Booking struct {
	ID             int64          `db:"id" json:"id"`
	TenantID       int64          `db:"tenant_id" json:"tenant_id"`
	IdempotencyKey string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	StartAt        time.Time      `db:"start_at" json:"start_at"`
	DurationMin    int            `db:"duration_min" json:"duration_min"`
	Timezone       string         `db:"timezone" json:"timezone"`
	CustomerName   string         `db:"customer_name" json:"customer_name"`
	CustomerEmail  string         `db:"customer_email" json:"customer_email"`
	CustomerPhone  string         `db:"customer_phone" json:"customer_phone,omitempty"`
	Notes          string         `db:"notes" json:"notes,omitempty"`
	ServiceID      sql.NullInt64  `db:"service_id" json:"service_id,omitempty"`
	ServiceName    string         `db:"service_name" json:"service_name,omitempty"`
	Price          int64          `db:"price" json:"price"`
	PaymentStatus  string         `db:"payment_status" json:"payment_status"`
	Status         string         `db:"status" json:"status"`
	SyncStatus     string         `db:"sync_status" json:"sync_status"`
	CalendarEvent  sql.NullString `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	SyncError      sql.NullString `db:"sync_error" json:"sync_error,omitempty"`
	EmailCustomer  bool           `db:"email_sent_to_customer" json:"email_sent_to_customer"`
	EmailAdmin     bool           `db:"email_sent_to_admin" json:"email_sent_to_admin"`
	TraceID        string         `db:"trace_id" json:"trace_id"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// EndAt computes the end of the appointment from start plus duration.
func (b *Booking) EndAt() time.Time {
	return b.StartAt.Add(time.Duration(b.DurationMin) * time.Minute)
}

// CalendarIntegration holds a tenant's OAuth credential set for the remote
// calendar. Exclusively written by the token manager and the connect flow.
type CalendarIntegration struct {
	TenantID     int64     `db:"tenant_id" json:"tenant_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	TokenExpiry  time.Time `db:"token_expiry" json:"token_expiry"`
	CalendarID   string    `db:"calendar_id" json:"calendar_id"`
	Connected    bool      `db:"connected" json:"connected"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// OAuthClientConfig is the platform-wide client credential row used for
// refresh-token exchanges. Read-only from this service's perspective.
type OAuthClientConfig struct {
	ClientID     string `db:"client_id"`
	ClientSecret string `db:"client_secret"`
}

// Booking lifecycle statuses (business-level, not mutated by this workflow
// after creation)
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// Calendar sync statuses
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusSkipped = "skipped"
	SyncStatusFailed  = "failed"
)

// Payment statuses (informational only, settled elsewhere)
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// DefaultCalendarID is used when a tenant never configured a target calendar.
const DefaultCalendarID = "primary"
