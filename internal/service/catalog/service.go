package catalog

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service реализует простые операции каталога: карточки товаров, поиск по
// имени и ручное пополнение стока продавцом. Ранжирование поиска вне системы.
type Service struct {
	products domain.ProductRepository
	ledger   domain.InventoryLedger
	logger   *log.Entry
}

// NewService конструирует сервис каталога с зависимостями.
func NewService(products domain.ProductRepository, ledger domain.InventoryLedger, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{
		products: products,
		ledger:   ledger,
		logger:   logger,
	}
}

// AddProduct создаёт карточку товара с начальным остатком.
func (s *Service) AddProduct(sellerID, name string, priceMinor int64, quantity int32) (domain.Product, error) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:         uuid.NewString(),
		Name:       name,
		PriceMinor: priceMinor,
		Quantity:   quantity,
		SellerID:   sellerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errs[0]
	}
	if err := s.products.Create(product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"seller_id":  sellerID,
	}).Info("product created")

	return product, nil
}

// GetProduct возвращает карточку товара.
func (s *Service) GetProduct(id string) (domain.Product, error) {
	return s.products.Get(id)
}

// Search возвращает товары по подстроке имени, в порядке возрастания ID.
func (s *Service) Search(query string, limit int) ([]domain.Product, error) {
	return s.products.SearchByName(query, limit)
}

// ListBySeller возвращает товары продавца.
func (s *Service) ListBySeller(sellerID string, limit int) ([]domain.Product, error) {
	if sellerID == "" {
		return nil, domain.ErrSellerRequired
	}
	return s.products.ListBySeller(sellerID, limit)
}

// Restock увеличивает остаток товара. Только владелец товара может пополнять сток.
func (s *Service) Restock(sellerID, productID string, qty int32) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Product{}, err
	}
	if sellerID != "" && product.SellerID != sellerID {
		return domain.Product{}, domain.ErrProductNotFound
	}

	restocked, err := s.ledger.Restock(productID, qty)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"seller_id":  product.SellerID,
		"qty":        qty,
	}).Info("product restocked")

	return restocked, nil
}
