package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
// Корзины не контендятся между покупателями, поэтому достаточно одного RWMutex.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartLine
}

// NewCartRepository возвращает in-memory репозиторий корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{carts: make(map[string][]domain.CartLine)}
}

// Snapshot возвращает копию корзины; для неизвестного покупателя — пустую корзину.
func (r *cartRepositoryInMemory) Snapshot(buyerID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := r.carts[buyerID]
	result := make([]domain.CartLine, len(lines))
	copy(result, lines)
	return domain.Cart{BuyerID: buyerID, Lines: result}, nil
}

// AddLine добавляет позицию, сливая её с существующей по ProductID.
// При слиянии количества суммируются, snapshot имени/цены остаётся исходным.
func (r *cartRepositoryInMemory) AddLine(buyerID string, line domain.CartLine) error {
	if line.Qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.carts[buyerID]
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Qty += line.Qty
			return nil
		}
	}
	r.carts[buyerID] = append(lines, line)
	return nil
}

// SetLineQty заменяет количество позиции; qty==0 удаляет её.
func (r *cartRepositoryInMemory) SetLineQty(buyerID, productID string, qty int32) error {
	if qty < 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.carts[buyerID]
	for i := range lines {
		if lines[i].ProductID != productID {
			continue
		}
		if qty == 0 {
			r.carts[buyerID] = append(lines[:i], lines[i+1:]...)
		} else {
			lines[i].Qty = qty
		}
		return nil
	}
	return domain.ErrLineNotFound
}

// RemoveLine удаляет позицию или возвращает ErrLineNotFound.
func (r *cartRepositoryInMemory) RemoveLine(buyerID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.carts[buyerID]
	for i := range lines {
		if lines[i].ProductID == productID {
			r.carts[buyerID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrLineNotFound
}

// Clear безусловно опустошает корзину; очистка пустой корзины — no-op.
func (r *cartRepositoryInMemory) Clear(buyerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, buyerID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
