package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOrderRepository_PostgresAppendGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "buyer-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "buyer-1", now.Add(-time.Minute))

	if err := repo.Append(order1); err != nil {
		t.Fatalf("append order1: %v", err)
	}
	if err := repo.Append(order2); err != nil {
		t.Fatalf("append order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.BuyerID != order1.BuyerID || got.AmountMinor != order1.AmountMinor {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.Address.Line1 != order1.Address.Line1 {
		t.Fatalf("unexpected address: %+v", got.Address)
	}
	if len(got.Lines) != len(order1.Lines) {
		t.Fatalf("unexpected lines count: got=%d want=%d", len(got.Lines), len(order1.Lines))
	}
	if got.Lines[0].Name != order1.Lines[0].Name || got.Lines[0].PriceMinor != order1.Lines[0].PriceMinor {
		t.Fatalf("order line snapshot not preserved: %+v", got.Lines[0])
	}

	listed, err := repo.ListByBuyer("buyer-1", 1)
	if err != nil {
		t.Fatalf("list by buyer with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByBuyer("buyer-1", 0)
	if err != nil {
		t.Fatalf("list by buyer without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("order-errors", "buyer-2", now)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Append(base); err != nil {
		t.Fatalf("append base order: %v", err)
	}
	if err := repo.Append(base); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists on duplicate append, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleOrder(id, buyerID string, placedAt time.Time) domain.Order {
	lines := []domain.OrderLine{
		{
			ID:         id + "-line-1",
			ProductID:  "p1",
			Name:       "Clock",
			PriceMinor: 1500,
			Qty:        2,
		},
	}

	return domain.Order{
		ID:           id,
		BuyerID:      buyerID,
		Lines:        lines,
		AmountMinor:  3000,
		PaymentLabel: "card",
		Address:      domain.Address{Line1: "Baker st. 221b"},
		PlacedAt:     placedAt,
	}
}
