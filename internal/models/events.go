package models

import "time"

// Event types
const (
	EventTypeOrderSyncRequested = "ORDER_SYNC_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderSyncRequestedEvent asks a worker to run one sync attempt for an order
type OrderSyncRequestedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	Trigger   string `json:"trigger"`
	Force     bool   `json:"force"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}
