package domain

// ProductRepository описывает требования к хранилищу каталога товаров.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ошибку, если ID уже занят.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// SearchByName возвращает товары, чьё имя содержит подстроку query
	// (без учёта регистра), в порядке возрастания ID.
	SearchByName(query string, limit int) ([]Product, error)
	// ListBySeller возвращает товары продавца в порядке возрастания ID.
	ListBySeller(sellerID string, limit int) ([]Product, error)
}

// CartRepository описывает требования к хранилищу корзин.
// Корзина создаётся неявно при первом добавлении; для неизвестного покупателя
// Snapshot возвращает пустую корзину, а не ошибку.
type CartRepository interface {
	// Snapshot возвращает копию текущих позиций покупателя.
	Snapshot(buyerID string) (Cart, error)
	// AddLine добавляет позицию, сливая её с существующей по ProductID:
	// количества суммируются, исходный snapshot имени/цены сохраняется.
	AddLine(buyerID string, line CartLine) error
	// SetLineQty заменяет количество позиции; qty==0 удаляет позицию.
	// Возвращает ErrLineNotFound, если товара в корзине нет.
	SetLineQty(buyerID, productID string, qty int32) error
	// RemoveLine удаляет позицию или возвращает ErrLineNotFound.
	RemoveLine(buyerID, productID string) error
	// Clear безусловно опустошает корзину; очистка пустой корзины — no-op.
	Clear(buyerID string) error
}

// OrderRepository — append-only леджер зафиксированных заказов.
// Операций обновления и удаления не существует.
type OrderRepository interface {
	// Append вставляет неизменяемую запись заказа.
	// Недоступность хранилища оборачивается в ErrPersistenceUnavailable.
	Append(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя, новые первыми.
	ListByBuyer(buyerID string, limit int) ([]Order, error)
}
