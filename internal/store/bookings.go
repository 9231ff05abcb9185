package store

import (
	"context"
	"database/sql"
	"fmt"

	"booking-service/internal/models"
)

// CreateBooking inserts a new booking row. The idempotency_key column carries
// a unique constraint; callers detect races with IsUniqueViolation.
func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			tenant_id, idempotency_key, start_at, duration_min, timezone,
			customer_name, customer_email, customer_phone, notes,
			service_id, service_name, price, payment_status,
			status, sync_status, email_sent_to_customer, email_sent_to_admin, trace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, booking, query,
		booking.TenantID, booking.IdempotencyKey, booking.StartAt, booking.DurationMin,
		booking.Timezone, booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone,
		booking.Notes, booking.ServiceID, booking.ServiceName, booking.Price,
		booking.PaymentStatus, booking.Status, booking.SyncStatus,
		booking.EmailCustomer, booking.EmailAdmin, booking.TraceID)
}

// GetBookingByID retrieves a booking by ID
func (s *Store) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetBookingByIdempotencyKey retrieves a booking by idempotency key.
// Returns nil, nil when no booking exists for the key.
func (s *Store) GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.GetContext(ctx, &booking, "SELECT * FROM bookings WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingSyncStatus records the calendar sync outcome for a booking.
// A booking already marked synced is never downgraded.
func (s *Store) UpdateBookingSyncStatus(ctx context.Context, bookingID int64, status string, eventID, syncErr sql.NullString) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET sync_status = $1, calendar_event_id = $2, sync_error = $3, updated_at = NOW()
		WHERE id = $4 AND sync_status <> $5`,
		status, eventID, syncErr, bookingID, models.SyncStatusSynced)
	return err
}

// UpdateBookingEmailFlags records which confirmation emails were delivered.
// Flags only ever move from false to true.
func (s *Store) UpdateBookingEmailFlags(ctx context.Context, bookingID int64, customerSent, adminSent bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET email_sent_to_customer = email_sent_to_customer OR $1,
		    email_sent_to_admin = email_sent_to_admin OR $2,
		    updated_at = NOW()
		WHERE id = $3`,
		customerSent, adminSent, bookingID)
	return err
}

// GetBookingsByTenantID retrieves bookings for a tenant
func (s *Store) GetBookingsByTenantID(ctx context.Context, tenantID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT * FROM bookings WHERE tenant_id = $1 ORDER BY start_at DESC", tenantID)
	return bookings, err
}
