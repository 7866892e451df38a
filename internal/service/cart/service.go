package cart

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service реализует операции над корзиной поверх репозиториев.
// Вся интерактивность (подтверждения, ввод) остаётся за фронтендом;
// сюда приходят уже разрешённые аргументы.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService конструирует сервис корзины с зависимостями.
func NewService(carts domain.CartRepository, products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &Service{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

// AddItem добавляет qty единиц товара в корзину покупателя.
// Для нового товара фиксируется snapshot текущего имени/цены; повторное
// добавление сливается с существующей позицией по ProductID.
func (s *Service) AddItem(buyerID, productID string, qty int32) (domain.Cart, error) {
	if buyerID == "" {
		return domain.Cart{}, domain.ErrBuyerRequired
	}
	if qty <= 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}

	line := domain.CartLine{
		ProductID:  product.ID,
		Name:       product.Name,
		PriceMinor: product.PriceMinor,
		Qty:        qty,
		AddedAt:    time.Now().UTC(),
	}
	if err := s.carts.AddLine(buyerID, line); err != nil {
		return domain.Cart{}, err
	}

	s.logger.WithFields(log.Fields{
		"buyer_id":   buyerID,
		"product_id": productID,
		"qty":        qty,
	}).Debug("cart line added")

	return s.carts.Snapshot(buyerID)
}

// UpdateItem заменяет количество позиции; qty==0 удаляет её.
func (s *Service) UpdateItem(buyerID, productID string, qty int32) (domain.Cart, error) {
	if buyerID == "" {
		return domain.Cart{}, domain.ErrBuyerRequired
	}
	if qty < 0 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	if err := s.carts.SetLineQty(buyerID, productID, qty); err != nil {
		return domain.Cart{}, err
	}
	return s.carts.Snapshot(buyerID)
}

// RemoveItem удаляет позицию из корзины.
func (s *Service) RemoveItem(buyerID, productID string) (domain.Cart, error) {
	if buyerID == "" {
		return domain.Cart{}, domain.ErrBuyerRequired
	}

	if err := s.carts.RemoveLine(buyerID, productID); err != nil {
		return domain.Cart{}, err
	}
	return s.carts.Snapshot(buyerID)
}

// Clear безусловно опустошает корзину покупателя.
func (s *Service) Clear(buyerID string) error {
	if buyerID == "" {
		return domain.ErrBuyerRequired
	}
	return s.carts.Clear(buyerID)
}

// Snapshot возвращает текущее содержимое корзины.
func (s *Service) Snapshot(buyerID string) (domain.Cart, error) {
	if buyerID == "" {
		return domain.Cart{}, domain.ErrBuyerRequired
	}
	return s.carts.Snapshot(buyerID)
}
