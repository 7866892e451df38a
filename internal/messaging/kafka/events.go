package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Checkout события
	EventTypeCheckoutStarted   EventType = "checkout.started"
	EventTypeCheckoutCommitted EventType = "checkout.committed"
	EventTypeCheckoutAborted   EventType = "checkout.aborted"

	// Order события
	EventTypeOrderPlaced EventType = "order.placed"

	// Inventory события
	EventTypeStockReserved    EventType = "stock.reserved"
	EventTypeStockReleased    EventType = "stock.released"
	EventTypeProductRestocked EventType = "stock.restocked"
)

// Topics для Kafka
const (
	TopicCheckoutEvents  = "storefront.checkout.events"
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// CheckoutEvent представляет событие конвейера оформления
type CheckoutEvent struct {
	EventType EventType              `json:"event_type"`
	BuyerID   string                 `json:"buyer_id"`
	OrderID   string                 `json:"order_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType   EventType              `json:"event_type"`
	OrderID     string                 `json:"order_id"`
	BuyerID     string                 `json:"buyer_id"`
	AmountMinor int64                  `json:"amount_minor"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent создает новое событие оформления
func NewCheckoutEvent(eventType EventType, buyerID, orderID string, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType: eventType,
		BuyerID:   buyerID,
		OrderID:   orderID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, buyerID string, amountMinor int64, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		BuyerID:     buyerID,
		AmountMinor: amountMinor,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}
}
