package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка неположительного количества в запросе (добавление в корзину, restock).
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// Ошибка отсутствующей позиции корзины при обновлении/удалении.
	ErrLineNotFound = errors.New("cart line not found")
	// Ошибка оформления заказа из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// Ошибка отсутствующего товара в каталоге/леджере.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — sentinel для нехватки стока; детали несёт InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPersistenceUnavailable — хранилище недоступно; не ретраится автоматически,
	// чтобы после неизвестной частичной записи не породить дубль заказа.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrCartClearFailed — предупреждение: заказ зафиксирован, но корзину очистить не удалось.
	ErrCartClearFailed = errors.New("order placed but cart clear failed")
	// ErrReservationNotFound возвращается при release неизвестного резерва.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrOrderNotFound возвращается, если заказ не найден в леджере.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists сигнализирует о повторной записи заказа с тем же ID.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrProductAlreadyExists сигнализирует о повторной записи товара с тем же ID.
	ErrProductAlreadyExists = errors.New("product already exists")
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной цены позиции.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка несоответствия суммы заказа сумме позиций.
	ErrAmountMismatch = errors.New("order amount does not match lines sum")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отсутствующего продавца у товара.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка отрицательного остатка товара.
	ErrProductQuantityInvalid = errors.New("product quantity must be non-negative")

	// ErrIdempotencyKeyAlreadyExists — повторный запрос с тем же ключом ещё обрабатывается.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хеш тела запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError описывает первый (в порядке возрастания ID товара)
// дефицитный товар из набора требований.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is позволяет сопоставлять детализированную ошибку с sentinel ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой стока.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// AsInsufficientStock извлекает детали дефицита, если они есть.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

// IsPersistenceUnavailable проверяет, является ли ошибка недоступностью хранилища.
func IsPersistenceUnavailable(err error) bool {
	return errors.Is(err, ErrPersistenceUnavailable)
}

// IsIdempotencyConflict проверяет, относится ли ошибка к конфликту idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
