package worker

import (
	"context"
	"testing"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetrier struct {
	result        service.SyncResult
	calls         int
	priorAttempts []int
}

func (f *fakeRetrier) RetrySync(ctx context.Context, bookingID int64, priorAttempts int) (service.SyncResult, error) {
	f.calls++
	f.priorAttempts = append(f.priorAttempts, priorAttempts)
	return f.result, nil
}

type fakeLocks struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocks) AcquireSyncLock(ctx context.Context, bookingID int64, ttl time.Duration) (bool, error) {
	f.acquired++
	return !f.held, nil
}

func (f *fakeLocks) ReleaseSyncLock(ctx context.Context, bookingID int64) error {
	f.released++
	return nil
}

func syncFailedEvent(attempt int) *models.CalendarSyncFailedEvent {
	return &models.CalendarSyncFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-abc",
			EventType: models.EventTypeCalendarSyncFailed,
			TraceID:   "trace-1",
			Timestamp: time.Now(),
		},
		BookingID: 7,
		TenantID:  42,
		Reason:    "calendar API returned status 503: upstream down",
		Attempt:   attempt,
	}
}

func newTestWorker(retrier *fakeRetrier, locks *fakeLocks) *SyncRetryWorker {
	return NewSyncRetryWorker(nil, retrier, locks)
}

func TestHandleSyncFailedRetriesUnderLock(t *testing.T) {
	retrier := &fakeRetrier{result: service.SyncResult{Status: models.SyncStatusSynced, EventID: "evt-9"}}
	locks := &fakeLocks{}
	w := newTestWorker(retrier, locks)

	err := w.handleSyncFailed(context.Background(), syncFailedEvent(1))
	require.NoError(t, err)

	assert.Equal(t, 1, retrier.calls)
	assert.Equal(t, []int{1}, retrier.priorAttempts)
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released)
}

func TestHandleSyncFailedStopsAtAttemptCap(t *testing.T) {
	retrier := &fakeRetrier{result: service.SyncResult{Status: models.SyncStatusFailed, Reason: "still down"}}
	locks := &fakeLocks{}
	w := newTestWorker(retrier, locks)

	err := w.handleSyncFailed(context.Background(), syncFailedEvent(maxSyncAttempts))
	require.NoError(t, err)

	assert.Zero(t, retrier.calls, "an exhausted event must not re-arm the retry")
	assert.Zero(t, locks.acquired)
}

func TestHandleSyncFailedSkipsWhenLockHeld(t *testing.T) {
	retrier := &fakeRetrier{result: service.SyncResult{Status: models.SyncStatusSynced}}
	locks := &fakeLocks{held: true}
	w := newTestWorker(retrier, locks)

	err := w.handleSyncFailed(context.Background(), syncFailedEvent(1))
	require.NoError(t, err)

	assert.Zero(t, retrier.calls)
	assert.Zero(t, locks.released)
}

// A calendar API that never recovers produces a bounded chain of failure
// events: each consumed event raises the attempt count by one until the cap
// drops the last event without another retry.
func TestHandleSyncFailedLoopTerminates(t *testing.T) {
	retrier := &fakeRetrier{result: service.SyncResult{Status: models.SyncStatusFailed, Reason: "upstream down"}}
	locks := &fakeLocks{}
	w := newTestWorker(retrier, locks)

	attempt := 1
	for i := 0; i < 10; i++ {
		before := retrier.calls
		err := w.handleSyncFailed(context.Background(), syncFailedEvent(attempt))
		require.NoError(t, err)
		if retrier.calls == before {
			break
		}
		attempt++
	}

	assert.Equal(t, maxSyncAttempts-1, retrier.calls)
	assert.Equal(t, maxSyncAttempts, attempt)
}
