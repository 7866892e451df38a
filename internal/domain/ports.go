package domain

import "time"

// InventoryLedger владеет остатками товаров и выполняет атомарное
// резервирование по набору требований.
type InventoryLedger interface {
	// Reserve выполняет all-or-nothing списание стока по всем требованиям.
	// Либо каждый товар списан ровно на требуемое количество и возвращён
	// handle, либо леджер не изменён и возвращена ошибка по первому
	// (в порядке возрастания ID) проблемному товару.
	Reserve(demands []Demand) (Reservation, error)
	// Release возвращает сток по handle; идемпотентен per handle.
	Release(res Reservation) error
	// Restock увеличивает остаток товара (ручное пополнение продавцом).
	Restock(productID string, qty int32) (Product, error)
}

// CheckoutState задаёт константы состояний оформления для метрик/логов/таймлайна.
type CheckoutState string

const (
	CheckoutStateDraft        CheckoutState = "draft"
	CheckoutStateReserving    CheckoutState = "reserving"
	CheckoutStateReserved     CheckoutState = "reserved"
	CheckoutStateAborted      CheckoutState = "aborted"
	CheckoutStateCommitted    CheckoutState = "committed"
	CheckoutStateCartCleared  CheckoutState = "cart_cleared"
	CheckoutStateClearFailed  CheckoutState = "clear_failed"
	CheckoutStateAppendFailed CheckoutState = "append_failed"
	CheckoutStateReleased     CheckoutState = "released"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла оформления заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(buyerID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
