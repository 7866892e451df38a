package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// newTestOrder создаёт тестовый заказ для использования в тестах.
func newTestOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:      uuid.NewString(),
		BuyerID: "test-buyer-1",
		Lines: []domain.OrderLine{
			{
				ID:         uuid.NewString(),
				ProductID:  "test-product-1",
				Name:       "Wall Clock",
				PriceMinor: 1500,
				Qty:        2,
			},
		},
		AmountMinor:  3000,
		PaymentLabel: "card",
		Address:      domain.Address{Line1: "Baker st. 221b"},
		PlacedAt:     now,
	}
}
