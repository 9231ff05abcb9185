package worker

import (
	"context"
	"log"
	"time"

	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// syncLockTTL bounds how long one worker instance holds a booking's retry
// lock. Generous compared to the 15s calendar timeout.
const syncLockTTL = 2 * time.Minute

// maxSyncAttempts caps the total sync attempts per booking, the initial one
// included. An event whose attempt count has reached the cap is dropped
// instead of re-armed, so a persistently failing calendar API cannot keep
// the retry loop alive forever.
const maxSyncAttempts = 3

type syncRetrier interface {
	RetrySync(ctx context.Context, bookingID int64, priorAttempts int) (service.SyncResult, error)
}

type retryLocks interface {
	AcquireSyncLock(ctx context.Context, bookingID int64, ttl time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, bookingID int64) error
}

// SyncRetryWorker is the out-of-band reconciliation process for failed
// calendar syncs: it consumes CalendarSyncFailed events and re-attempts the
// sync once per event, under a per-booking Redis lock.
type SyncRetryWorker struct {
	consumer       *broker.Consumer
	eventHandler   *broker.EventHandler
	bookingService syncRetrier
	locks          retryLocks
	logger         *zap.Logger
}

// NewSyncRetryWorker creates a new sync retry worker
func NewSyncRetryWorker(
	consumer *broker.Consumer,
	bookingService syncRetrier,
	locks retryLocks,
) *SyncRetryWorker {
	w := &SyncRetryWorker{
		consumer:       consumer,
		bookingService: bookingService,
		locks:          locks,
		logger:         util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCalendarSyncFailed(w.handleSyncFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *SyncRetryWorker) Start(ctx context.Context) error {
	log.Println("Starting sync retry worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SyncRetryWorker) Stop() error {
	log.Println("Stopping sync retry worker...")
	return w.consumer.Close()
}

func (w *SyncRetryWorker) handleSyncFailed(ctx context.Context, event *models.CalendarSyncFailedEvent) error {
	ctx = util.WithTraceID(ctx, event.TraceID)

	if event.Attempt >= maxSyncAttempts {
		util.SyncRetriesTotal.WithLabelValues("exhausted").Inc()
		w.logger.Warn("Giving up on calendar sync",
			zap.Int64("booking_id", event.BookingID),
			zap.Int("attempts", event.Attempt),
			zap.String("reason", event.Reason),
			zap.String("trace_id", event.TraceID))
		return nil
	}

	acquired, err := w.locks.AcquireSyncLock(ctx, event.BookingID, syncLockTTL)
	if err != nil {
		w.logger.Warn("Failed to acquire sync retry lock",
			zap.Int64("booking_id", event.BookingID),
			zap.Error(err))
		return nil
	}
	if !acquired {
		// Another instance is already retrying this booking.
		return nil
	}
	defer func() {
		if err := w.locks.ReleaseSyncLock(ctx, event.BookingID); err != nil {
			w.logger.Warn("Failed to release sync retry lock",
				zap.Int64("booking_id", event.BookingID),
				zap.Error(err))
		}
	}()

	result, err := w.bookingService.RetrySync(ctx, event.BookingID, event.Attempt)
	if err != nil {
		util.SyncRetriesTotal.WithLabelValues("error").Inc()
		w.logger.Error("Sync retry failed to load booking",
			zap.Int64("booking_id", event.BookingID),
			zap.String("trace_id", event.TraceID),
			zap.Error(err))
		return nil
	}

	util.SyncRetriesTotal.WithLabelValues(result.Status).Inc()
	w.logger.Info("Sync retry completed",
		zap.Int64("booking_id", event.BookingID),
		zap.String("result", result.Status),
		zap.String("trace_id", event.TraceID))

	return nil
}
