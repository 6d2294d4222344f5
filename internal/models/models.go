package models

import (
	"strconv"
	"time"
)

// Product represents a product in the catalog
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       *string   `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order represents a store order as seen by the sync subsystem
type Order struct {
	ID               int64      `db:"id" json:"id"`
	OrderNumber      string     `db:"order_number" json:"order_number"`
	BillingEmail     string     `db:"billing_email" json:"billing_email"`
	BillingFirstName string     `db:"billing_first_name" json:"billing_first_name"`
	BillingLastName  string     `db:"billing_last_name" json:"billing_last_name"`
	Status           string     `db:"status" json:"status"`
	Synced           bool       `db:"synced" json:"synced"`
	SyncedAt         *time.Time `db:"synced_at" json:"synced_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Number returns the public order number, falling back to the id
func (o *Order) Number() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return strconv.FormatInt(o.ID, 10)
}

// LineItem represents an item in an order. Product is nil when the
// referenced product no longer exists.
type LineItem struct {
	ID        int64    `db:"id" json:"id"`
	OrderID   int64    `db:"order_id" json:"order_id"`
	ProductID *int64   `db:"product_id" json:"product_id"`
	Quantity  int      `db:"quantity" json:"quantity"`
	UnitTotal int64    `db:"unit_total" json:"unit_total"`
	Product   *Product `db:"-" json:"product,omitempty"`
}

// Order statuses, without the "wc-" storage prefix
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusFailed     = "failed"
)

// SyncProduct is a product entry of the outbound payload
type SyncProduct struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// SyncPayload is the JSON document delivered to the receiving application
type SyncPayload struct {
	OrderID     int64         `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	Email       string        `json:"email"`
	Name        string        `json:"name"`
	Products    []SyncProduct `json:"products"`
}

// Sync statuses
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusPending = "pending"
)

// Sync triggers
const (
	TriggerStatusChange = "status_change"
	TriggerManual       = "manual"
	TriggerRetry        = "retry"
	TriggerBulk         = "bulk"
)

// SyncLog is one recorded sync attempt. Rows are append-only.
type SyncLog struct {
	ID              int64     `db:"id" json:"id"`
	AttemptID       string    `db:"attempt_id" json:"attempt_id"`
	OrderID         int64     `db:"order_id" json:"order_id"`
	OrderNumber     string    `db:"order_number" json:"order_number"`
	CustomerEmail   string    `db:"customer_email" json:"customer_email"`
	CustomerName    string    `db:"customer_name" json:"customer_name"`
	ProductsData    string    `db:"products_data" json:"products_data"`
	SyncStatus      string    `db:"sync_status" json:"sync_status"`
	ResponseCode    *int      `db:"response_code" json:"response_code"`
	ResponseMessage string    `db:"response_message" json:"response_message"`
	ResponseData    string    `db:"response_data" json:"response_data"`
	SyncTime        time.Time `db:"sync_time" json:"sync_time"`
	ExecutionTime   float64   `db:"execution_time" json:"execution_time"`
	RetryCount      int       `db:"retry_count" json:"retry_count"`
	TriggerSource   string    `db:"trigger_source" json:"trigger_source"`
}

// SyncLogFilter selects a page of sync logs
type SyncLogFilter struct {
	Status string
	Limit  int
	Offset int
}

// SyncSettings is the operator-managed sync configuration
type SyncSettings struct {
	EndpointBaseURL string   `json:"endpoint_base_url"`
	WebhookSecret   string   `json:"webhook_secret"`
	SyncOnStatus    []string `json:"sync_on_status"`
}

// DefaultSyncOnStatus is the allow-list used when none is configured
var DefaultSyncOnStatus = []string{OrderStatusCompleted, OrderStatusProcessing}

// DailySyncStats aggregates attempts for one UTC day
type DailySyncStats struct {
	Date    string `json:"date"`
	Total   int64  `json:"total"`
	Success int64  `json:"success"`
	Failed  int64  `json:"failed"`
}

// SyncStats summarizes the sync log
type SyncStats struct {
	Total            int64            `json:"total"`
	Success          int64            `json:"success"`
	Failed           int64            `json:"failed"`
	Pending          int64            `json:"pending"`
	Recent           int64            `json:"recent_7d"`
	AvgExecutionTime float64          `json:"avg_execution_time"`
	Daily            []DailySyncStats `json:"daily"`
}
