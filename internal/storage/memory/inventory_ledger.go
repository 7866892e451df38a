package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRecord хранит товар вместе с его персональной блокировкой.
// Остаток мутируется только под record.mu; резервирование захватывает
// блокировки всех затронутых товаров в порядке возрастания ID.
type productRecord struct {
	mu      sync.Mutex
	product domain.Product
}

// productStoreInMemory — in-memory реализация каталога и складского леджера.
// Один экземпляр обслуживает и ProductRepository, и InventoryLedger: остаток
// и карточка товара — одна запись.
type productStoreInMemory struct {
	mu       sync.RWMutex
	products map[string]*productRecord

	resMu        sync.Mutex
	reservations map[string]domain.ReservationStatus
}

// NewProductStore возвращает in-memory каталог+леджер для локальной разработки и тестов.
func NewProductStore() *productStoreInMemory {
	return &productStoreInMemory{
		products:     make(map[string]*productRecord),
		reservations: make(map[string]domain.ReservationStatus),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (s *productStoreInMemory) Create(product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.ErrProductAlreadyExists
	}
	s.products[product.ID] = &productRecord{product: product}
	return nil
}

// Get возвращает копию товара или ErrProductNotFound.
func (s *productStoreInMemory) Get(id string) (domain.Product, error) {
	rec, err := s.record(id)
	if err != nil {
		return domain.Product{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.product, nil
}

// SearchByName возвращает товары с именем, содержащим query (без учёта регистра).
func (s *productStoreInMemory) SearchByName(query string, limit int) ([]domain.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	records := make([]*productRecord, 0, len(s.products))
	for _, rec := range s.products {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	result := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		p := rec.product
		rec.mu.Unlock()
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListBySeller возвращает товары продавца в порядке возрастания ID.
func (s *productStoreInMemory) ListBySeller(sellerID string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	records := make([]*productRecord, 0, len(s.products))
	for _, rec := range s.products {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	result := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		p := rec.product
		rec.mu.Unlock()
		if p.SellerID != sellerID {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Reserve выполняет all-or-nothing списание стока по набору требований.
// Требования проверяются в порядке возрастания ID товара; блокировки
// захватываются в том же порядке, что исключает deadlock между
// конкурентными резервированиями пересекающихся наборов.
func (s *productStoreInMemory) Reserve(demands []domain.Demand) (domain.Reservation, error) {
	if len(demands) == 0 {
		return domain.Reservation{}, domain.ErrEmptyCart
	}

	for _, d := range demands {
		if errs := d.Validate(); len(errs) > 0 {
			return domain.Reservation{}, errs[0]
		}
	}

	// Дубли одного товара суммируются: иначе захват его блокировки
	// повторился бы внутри одного резервирования.
	sorted := domain.CoalesceDemands(demands)

	// Сбор записей в отсортированном порядке; первый отсутствующий товар — ошибка.
	records := make([]*productRecord, 0, len(sorted))
	s.mu.RLock()
	for _, d := range sorted {
		rec, ok := s.products[d.ProductID]
		if !ok {
			s.mu.RUnlock()
			return domain.Reservation{}, domain.ErrProductNotFound
		}
		records = append(records, rec)
	}
	s.mu.RUnlock()

	for _, rec := range records {
		rec.mu.Lock()
	}
	unlock := func() {
		for _, rec := range records {
			rec.mu.Unlock()
		}
	}

	// Сначала валидация всех требований: до первой мутации леджер не трогаем.
	for i, d := range sorted {
		available := records[i].product.Quantity
		if available < d.Qty {
			unlock()
			return domain.Reservation{}, &domain.InsufficientStockError{
				ProductID: d.ProductID,
				Requested: d.Qty,
				Available: available,
			}
		}
	}

	now := time.Now().UTC()
	lines := make([]domain.ReservationLine, 0, len(sorted))
	for i, d := range sorted {
		records[i].product.Quantity -= d.Qty
		records[i].product.UpdatedAt = now
		lines = append(lines, domain.ReservationLine{ProductID: d.ProductID, Qty: d.Qty})
	}
	unlock()

	res := domain.Reservation{
		ID:        uuid.NewString(),
		Lines:     lines,
		CreatedAt: now,
	}

	s.resMu.Lock()
	s.reservations[res.ID] = domain.ReservationStatusReserved
	s.resMu.Unlock()

	return res, nil
}

// Release возвращает сток по handle. Идемпотентен: повторный release того же
// handle меняет остатки не более одного раза.
func (s *productStoreInMemory) Release(res domain.Reservation) error {
	if res.ID == "" {
		return domain.ErrReservationNotFound
	}

	s.resMu.Lock()
	status, ok := s.reservations[res.ID]
	if !ok {
		s.resMu.Unlock()
		return domain.ErrReservationNotFound
	}
	if status == domain.ReservationStatusReleased {
		s.resMu.Unlock()
		return nil
	}
	s.reservations[res.ID] = domain.ReservationStatusReleased
	s.resMu.Unlock()

	now := time.Now().UTC()
	for _, line := range res.Lines {
		rec, err := s.record(line.ProductID)
		if err != nil {
			continue
		}
		rec.mu.Lock()
		rec.product.Quantity += line.Qty
		rec.product.UpdatedAt = now
		rec.mu.Unlock()
	}
	return nil
}

// Restock увеличивает остаток товара на qty (ручное пополнение продавцом).
func (s *productStoreInMemory) Restock(productID string, qty int32) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}

	rec, err := s.record(productID)
	if err != nil {
		return domain.Product{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.product.Quantity += qty
	rec.product.UpdatedAt = time.Now().UTC()
	return rec.product, nil
}

func (s *productStoreInMemory) record(id string) (*productRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return rec, nil
}

var _ domain.ProductRepository = (*productStoreInMemory)(nil)
var _ domain.InventoryLedger = (*productStoreInMemory)(nil)
