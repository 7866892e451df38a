package memory

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func makeTestOrder(id, buyerID string, placedAt time.Time) domain.Order {
	return domain.Order{
		ID:           id,
		BuyerID:      buyerID,
		AmountMinor:  1000,
		PaymentLabel: "cash on delivery",
		Address:      domain.Address{Line1: "ul. Lenina 1"},
		Lines: []domain.OrderLine{{
			ID:         id + "-line-1",
			ProductID:  "p-1",
			Name:       "Teapot",
			PriceMinor: 1000,
			Qty:        1,
		}},
		PlacedAt: placedAt,
	}
}

func TestAppendAndGet(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()

	order := makeTestOrder("order-1", "buyer-1", now)
	if err := repo.Append(order); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BuyerID != "buyer-1" || len(got.Lines) != 1 || got.Lines[0].Name != "Teapot" {
		t.Errorf("get = %+v, want stored order", got)
	}

	if _, err := repo.Get("ghost"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("get ghost error = %v, want ErrOrderNotFound", err)
	}
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()

	order := makeTestOrder("order-1", "buyer-1", now)
	if err := repo.Append(order); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("duplicate append error = %v, want ErrOrderAlreadyExists", err)
	}
}

func TestAppendedOrderIsImmutable(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()

	order := makeTestOrder("order-1", "buyer-1", now)
	if err := repo.Append(order); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Мутация исходного среза и полученной копии не должна влиять на хранилище.
	order.Lines[0].PriceMinor = 1

	got, _ := repo.Get("order-1")
	got.Lines[0].Qty = 99

	fresh, _ := repo.Get("order-1")
	if fresh.Lines[0].PriceMinor != 1000 || fresh.Lines[0].Qty != 1 {
		t.Errorf("stored order mutated: %+v", fresh.Lines[0])
	}
}

func TestListByBuyerOrdersNewestFirst(t *testing.T) {
	repo := NewOrderRepository()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		order := makeTestOrder(fmt.Sprintf("order-%d", i), "buyer-1", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Append(order); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := repo.Append(makeTestOrder("other", "buyer-2", base)); err != nil {
		t.Fatalf("append other: %v", err)
	}

	orders, err := repo.ListByBuyer("buyer-1", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("list returned %d orders, want 3", len(orders))
	}
	for i := 1; i < len(orders); i++ {
		if orders[i].PlacedAt.After(orders[i-1].PlacedAt) {
			t.Errorf("orders not sorted newest first: %v before %v", orders[i-1].PlacedAt, orders[i].PlacedAt)
		}
	}
}
