package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrValidation marks a booking request rejected before any persistence.
var ErrValidation = errors.New("invalid booking request")

type bookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)
	UpdateBookingSyncStatus(ctx context.Context, bookingID int64, status string, eventID, syncErr sql.NullString) error
	UpdateBookingEmailFlags(ctx context.Context, bookingID int64, customerSent, adminSent bool) error
}

type idempotencyCache interface {
	CacheIdempotentBooking(ctx context.Context, key string, bookingID int64, ttl time.Duration) error
	LookupIdempotentBooking(ctx context.Context, key string) (int64, error)
}

type calendarSyncer interface {
	SyncBooking(ctx context.Context, booking *models.Booking) SyncResult
}

type notifier interface {
	Notify(ctx context.Context, booking *models.Booking) NotifyResult
}

type eventPublisher interface {
	PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error
	PublishCalendarSynced(ctx context.Context, event *models.CalendarSyncedEvent) error
	PublishCalendarSyncFailed(ctx context.Context, event *models.CalendarSyncFailedEvent) error
	PublishBookingNotified(ctx context.Context, event *models.BookingNotifiedEvent) error
}

// BookingService coordinates the booking saga: idempotency guard, persist,
// calendar sync, notification. Once the row is persisted the remaining steps
// always run; their outcomes are recorded, never rolled back.
type BookingService struct {
	store          bookingStore
	cache          idempotencyCache
	eventPublisher eventPublisher
	calendar       calendarSyncer
	notifier       notifier
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	store bookingStore,
	cache idempotencyCache,
	eventPublisher eventPublisher,
	calendar calendarSyncer,
	notifier notifier,
	idempotencyTTL time.Duration,
) *BookingService {
	return &BookingService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		calendar:       calendar,
		notifier:       notifier,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CreateBookingRequest represents a request to create a booking
type CreateBookingRequest struct {
	TenantID       int64     `json:"tenant_id" binding:"required"`
	StartAt        time.Time `json:"start_at" binding:"required"`
	DurationMin    int       `json:"duration_min" binding:"required,min=1"`
	Timezone       string    `json:"timezone,omitempty"`
	CustomerName   string    `json:"customer_name" binding:"required"`
	CustomerEmail  string    `json:"customer_email" binding:"required,email"`
	CustomerPhone  string    `json:"customer_phone,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ServiceID      *int64    `json:"service_id,omitempty"`
	ServiceName    string    `json:"service_name,omitempty"`
	Price          int64     `json:"price,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// EmailFlags reports the two confirmation sends independently
type EmailFlags struct {
	Customer bool `json:"customer"`
	Admin    bool `json:"admin"`
}

// CreateBookingResponse is the composite saga result returned to the caller
type CreateBookingResponse struct {
	BookingID          int64      `json:"booking_id"`
	CalendarSyncStatus string     `json:"calendar_sync_status"`
	CalendarEventID    string     `json:"calendar_event_id,omitempty"`
	EmailSent          EmailFlags `json:"email_sent"`
	TraceID            string     `json:"trace_id"`
}

// CreateBooking runs the booking saga for one request.
func (s *BookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateBooking")
	defer span.End()

	traceID := util.TraceIDFrom(ctx)

	if err := validateRequest(req); err != nil {
		util.BookingsFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = deriveIdempotencyKey(req.TenantID, req.CustomerEmail, req.StartAt)
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	existing, err := s.findExisting(ctx, req.IdempotencyKey)
	if err != nil {
		util.BookingsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		return s.duplicateResponse(existing), nil
	}

	booking := &models.Booking{
		TenantID:       req.TenantID,
		IdempotencyKey: req.IdempotencyKey,
		StartAt:        req.StartAt,
		DurationMin:    req.DurationMin,
		Timezone:       req.Timezone,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Notes:          req.Notes,
		ServiceName:    req.ServiceName,
		Price:          req.Price,
		PaymentStatus:  models.PaymentStatusUnpaid,
		Status:         models.BookingStatusPending,
		SyncStatus:     models.SyncStatusPending,
		TraceID:        traceID,
	}
	if req.ServiceID != nil {
		booking.ServiceID = sql.NullInt64{Int64: *req.ServiceID, Valid: true}
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		if store.IsUniqueViolation(err) {
			// Two identical requests raced past the lookup; the other one won.
			if existing, lookupErr := s.findExisting(ctx, req.IdempotencyKey); lookupErr == nil && existing != nil {
				return s.duplicateResponse(existing), nil
			}
		}
		util.BookingsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	util.BookingsCreatedTotal.Inc()
	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("tenant_id", booking.TenantID),
		zap.String("trace_id", traceID))

	s.publishCreated(ctx, booking)

	// From here on there is no abort path; each step records its outcome.
	syncResult := s.calendar.SyncBooking(ctx, booking)
	s.recordSyncOutcome(ctx, booking, syncResult, 1)

	notifyResult := s.notifier.Notify(ctx, booking)
	s.recordNotifyOutcome(ctx, booking, notifyResult)

	if err := s.cache.CacheIdempotentBooking(ctx, req.IdempotencyKey, booking.ID, s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
	}

	return &CreateBookingResponse{
		BookingID:          booking.ID,
		CalendarSyncStatus: syncResult.Status,
		CalendarEventID:    syncResult.EventID,
		EmailSent: EmailFlags{
			Customer: notifyResult.CustomerSent,
			Admin:    notifyResult.AdminSent,
		},
		TraceID: traceID,
	}, nil
}

// findExisting resolves the idempotency key to a prior booking, trying the
// Redis fast path before the relational store. Cache errors degrade to the
// store lookup; a failing store lookup is surfaced to the caller.
func (s *BookingService) findExisting(ctx context.Context, key string) (*models.Booking, error) {
	if id, err := s.cache.LookupIdempotentBooking(ctx, key); err != nil {
		s.logger.Warn("Idempotency cache lookup failed", zap.Error(err))
	} else if id != 0 {
		if booking, err := s.store.GetBookingByID(ctx, id); err == nil {
			return booking, nil
		}
	}

	return s.store.GetBookingByIdempotencyKey(ctx, key)
}

// duplicateResponse returns the prior outcome's recorded status flags
// unchanged; no side effect is re-attempted on an idempotency hit.
func (s *BookingService) duplicateResponse(existing *models.Booking) *CreateBookingResponse {
	util.BookingsDuplicateTotal.Inc()
	s.logger.Info("Duplicate booking request detected",
		zap.Int64("booking_id", existing.ID),
		zap.String("idempotency_key", existing.IdempotencyKey),
		zap.String("trace_id", existing.TraceID))

	return &CreateBookingResponse{
		BookingID:          existing.ID,
		CalendarSyncStatus: existing.SyncStatus,
		CalendarEventID:    existing.CalendarEvent.String,
		EmailSent: EmailFlags{
			Customer: existing.EmailCustomer,
			Admin:    existing.EmailAdmin,
		},
		TraceID: existing.TraceID,
	}
}

// recordSyncOutcome persists the sync result and publishes the matching
// event. attempt is the number of sync attempts made so far including this
// one; a failed-sync event carries it so the retry worker can give up.
func (s *BookingService) recordSyncOutcome(ctx context.Context, booking *models.Booking, result SyncResult, attempt int) {
	eventID := nullString(result.EventID)
	syncErr := nullString(result.Reason)
	if result.Status == models.SyncStatusSkipped {
		syncErr = sql.NullString{}
	}

	if err := s.store.UpdateBookingSyncStatus(ctx, booking.ID, result.Status, eventID, syncErr); err != nil {
		s.logger.Error("Failed to record sync status",
			zap.Int64("booking_id", booking.ID),
			zap.String("trace_id", booking.TraceID),
			zap.Error(err))
	}

	booking.SyncStatus = result.Status
	booking.CalendarEvent = eventID
	booking.SyncError = syncErr

	switch result.Status {
	case models.SyncStatusSynced:
		event := &models.CalendarSyncedEvent{
			BaseEvent:       s.baseEvent(models.EventTypeCalendarSynced, booking.TraceID),
			BookingID:       booking.ID,
			TenantID:        booking.TenantID,
			CalendarEventID: result.EventID,
		}
		if err := s.eventPublisher.PublishCalendarSynced(ctx, event); err != nil {
			s.logger.Error("Failed to publish CalendarSynced event", zap.Error(err))
		}
	case models.SyncStatusFailed:
		event := &models.CalendarSyncFailedEvent{
			BaseEvent: s.baseEvent(models.EventTypeCalendarSyncFailed, booking.TraceID),
			BookingID: booking.ID,
			TenantID:  booking.TenantID,
			Reason:    result.Reason,
			Attempt:   attempt,
		}
		if err := s.eventPublisher.PublishCalendarSyncFailed(ctx, event); err != nil {
			s.logger.Error("Failed to publish CalendarSyncFailed event", zap.Error(err))
		}
	}
}

func (s *BookingService) recordNotifyOutcome(ctx context.Context, booking *models.Booking, result NotifyResult) {
	if err := s.store.UpdateBookingEmailFlags(ctx, booking.ID, result.CustomerSent, result.AdminSent); err != nil {
		s.logger.Error("Failed to record email flags",
			zap.Int64("booking_id", booking.ID),
			zap.String("trace_id", booking.TraceID),
			zap.Error(err))
	}

	booking.EmailCustomer = booking.EmailCustomer || result.CustomerSent
	booking.EmailAdmin = booking.EmailAdmin || result.AdminSent

	event := &models.BookingNotifiedEvent{
		BaseEvent:    s.baseEvent(models.EventTypeBookingNotified, booking.TraceID),
		BookingID:    booking.ID,
		TenantID:     booking.TenantID,
		CustomerSent: result.CustomerSent,
		AdminSent:    result.AdminSent,
	}
	if err := s.eventPublisher.PublishBookingNotified(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingNotified event", zap.Error(err))
	}
}

func (s *BookingService) publishCreated(ctx context.Context, booking *models.Booking) {
	event := &models.BookingCreatedEvent{
		BaseEvent:     s.baseEvent(models.EventTypeBookingCreated, booking.TraceID),
		BookingID:     booking.ID,
		TenantID:      booking.TenantID,
		CustomerEmail: booking.CustomerEmail,
		StartAt:       booking.StartAt,
		DurationMin:   booking.DurationMin,
		Price:         booking.Price,
	}
	if err := s.eventPublisher.PublishBookingCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BookingCreated event", zap.Error(err))
	}
}

// RetrySync re-attempts the calendar sync for a booking out-of-band. A
// booking already synced is left alone. priorAttempts is how many sync
// attempts were made before this one; a renewed failure event carries the
// incremented count so retries terminate.
func (s *BookingService) RetrySync(ctx context.Context, bookingID int64, priorAttempts int) (SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.RetrySync")
	defer span.End()

	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return SyncResult{}, err
	}

	if booking.SyncStatus == models.SyncStatusSynced {
		return SyncResult{Status: booking.SyncStatus, EventID: booking.CalendarEvent.String}, nil
	}

	result := s.calendar.SyncBooking(ctx, booking)
	s.recordSyncOutcome(ctx, booking, result, priorAttempts+1)
	return result, nil
}

// GetBooking retrieves a booking by ID
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.store.GetBookingByID(ctx, bookingID)
}

func (s *BookingService) baseEvent(eventType, traceID string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		TraceID:   traceID,
		Timestamp: time.Now(),
	}
}

func validateRequest(req *CreateBookingRequest) error {
	switch {
	case req.TenantID == 0:
		return fmt.Errorf("%w: tenant_id is required", ErrValidation)
	case req.CustomerName == "":
		return fmt.Errorf("%w: customer_name is required", ErrValidation)
	case req.CustomerEmail == "":
		return fmt.Errorf("%w: customer_email is required", ErrValidation)
	case req.StartAt.IsZero():
		return fmt.Errorf("%w: start_at is required", ErrValidation)
	case req.DurationMin <= 0:
		return fmt.Errorf("%w: duration_min must be positive", ErrValidation)
	}
	return nil
}

// deriveIdempotencyKey collapses duplicate submissions from network retries
// when the caller supplies no key of its own.
func deriveIdempotencyKey(tenantID int64, email string, startAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s", tenantID, email, startAt.UTC().Format(time.RFC3339))))
	return hex.EncodeToString(sum[:])
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
