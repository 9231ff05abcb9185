package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"booking-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing booking domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishBookingCreated publishes BookingCreated event
func (ep *EventPublisher) PublishBookingCreated(ctx context.Context, event *models.BookingCreatedEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCalendarSynced publishes CalendarSynced event
func (ep *EventPublisher) PublishCalendarSynced(ctx context.Context, event *models.CalendarSyncedEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCalendarSyncFailed publishes CalendarSyncFailed event
func (ep *EventPublisher) PublishCalendarSyncFailed(ctx context.Context, event *models.CalendarSyncFailedEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBookingNotified publishes BookingNotified event
func (ep *EventPublisher) PublishBookingNotified(ctx context.Context, event *models.BookingNotifiedEvent) error {
	key := fmt.Sprintf("booking-%d", event.BookingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming booking events to registered handlers
type EventHandler struct {
	onCalendarSyncFailed func(context.Context, *models.CalendarSyncFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCalendarSyncFailed registers a handler for CalendarSyncFailed events
func (eh *EventHandler) OnCalendarSyncFailed(handler func(context.Context, *models.CalendarSyncFailedEvent) error) {
	eh.onCalendarSyncFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCalendarSyncFailed:
		if eh.onCalendarSyncFailed != nil {
			var event models.CalendarSyncFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CalendarSyncFailed event: %w", err)
			}
			return eh.onCalendarSyncFailed(ctx, &event)
		}

	case models.EventTypeBookingCreated, models.EventTypeCalendarSynced, models.EventTypeBookingNotified:
		// Informational events for downstream consumers; nothing to do here.

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
