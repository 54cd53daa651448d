package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated     EventType = "order.created"
	EventTypeOrderConfirmed   EventType = "order.confirmed"
	EventTypeOrderCanceled    EventType = "order.canceled"
	EventTypeOrderCompleted   EventType = "order.completed"
	EventTypeOrderReactivated EventType = "order.reactivated"

	// Payment события
	EventTypePaymentConfirmed EventType = "payment.confirmed"
	EventTypePaymentFailed    EventType = "payment.failed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicPaymentEvents   = "storefront.payment.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	AccountID string                 `json:"account_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentEvent представляет событие платёжного подтверждения
type PaymentEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Channel   string                 `json:"channel"`
	TxnID     string                 `json:"txn_id"`
	Code      string                 `json:"code"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, accountID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		AccountID: accountID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewPaymentEvent создает новое событие платежа
func NewPaymentEvent(eventType EventType, orderID, channel, txnID, code string) *PaymentEvent {
	return &PaymentEvent{
		EventType: eventType,
		OrderID:   orderID,
		Channel:   channel,
		TxnID:     txnID,
		Code:      code,
		Timestamp: time.Now(),
	}
}
