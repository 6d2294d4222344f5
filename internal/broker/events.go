package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"order-sync-service/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing sync jobs
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSyncRequested publishes an OrderSyncRequested event. Jobs for the
// same order share a key and therefore a partition.
func (ep *EventPublisher) PublishSyncRequested(ctx context.Context, event *models.OrderSyncRequestedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.EventType = models.EventTypeOrderSyncRequested

	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSyncRequested func(context.Context, *models.OrderSyncRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnSyncRequested registers a handler for OrderSyncRequested events
func (eh *EventHandler) OnSyncRequested(handler func(context.Context, *models.OrderSyncRequestedEvent) error) {
	eh.onSyncRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: failed to unmarshal base event: %v", ErrPoisonMessage, err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderSyncRequested:
		if eh.onSyncRequested != nil {
			var event models.OrderSyncRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: failed to unmarshal OrderSyncRequested event: %v", ErrPoisonMessage, err)
			}
			return eh.onSyncRequested(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
