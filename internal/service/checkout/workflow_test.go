package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	carts    domain.CartRepository
	store    *productStore
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
}

// productStore объединяет каталог и леджер in-memory реализации для тестов.
type productStore struct {
	domain.ProductRepository
	domain.InventoryLedger
}

func newFixture() *fixture {
	products := memory.NewProductStore()
	return &fixture{
		carts:    memory.NewCartRepository(),
		store:    &productStore{ProductRepository: products, InventoryLedger: products},
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
	}
}

func (f *fixture) workflow() Workflow {
	return NewWorkflowWithoutMetrics(f.carts, f.store, f.orders, f.outbox, f.timeline, nil)
}

func (f *fixture) seedProduct(t *testing.T, id, name string, price int64, qty int32) {
	t.Helper()
	now := time.Now().UTC()
	err := f.store.Create(domain.Product{
		ID:         id,
		Name:       name,
		PriceMinor: price,
		Quantity:   qty,
		SellerID:   "seller-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func (f *fixture) addToCart(t *testing.T, buyerID, productID, name string, price int64, qty int32) {
	t.Helper()
	err := f.carts.AddLine(buyerID, domain.CartLine{
		ProductID:  productID,
		Name:       name,
		PriceMinor: price,
		Qty:        qty,
		AddedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("add line %s: %v", productID, err)
	}
}

func (f *fixture) stock(t *testing.T, productID string) int32 {
	t.Helper()
	product, err := f.store.Get(productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	return product.Quantity
}

func TestPlaceOrderHappyPath(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", "Clock", 1500, 10)
	f.seedProduct(t, "p2", "Lamp", 700, 4)
	f.addToCart(t, "buyer-1", "p1", "Clock", 1500, 2)
	f.addToCart(t, "buyer-1", "p2", "Lamp", 700, 1)

	receipt, err := f.workflow().PlaceOrder("buyer-1", domain.Address{Line1: "Baker st. 221b"}, "card")
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if receipt.Warning != nil {
		t.Errorf("Warning = %v, want nil", receipt.Warning)
	}
	if receipt.Order.ID == "" {
		t.Error("order ID should be assigned")
	}
	if receipt.Order.AmountMinor != 2*1500+700 {
		t.Errorf("AmountMinor = %d, want %d", receipt.Order.AmountMinor, 2*1500+700)
	}
	if len(receipt.Order.Lines) != 2 {
		t.Fatalf("order has %d lines, want 2", len(receipt.Order.Lines))
	}

	// Сток списан ровно на заказанные количества.
	if got := f.stock(t, "p1"); got != 8 {
		t.Errorf("p1 stock = %d, want 8", got)
	}
	if got := f.stock(t, "p2"); got != 3 {
		t.Errorf("p2 stock = %d, want 3", got)
	}

	// Заказ виден в леджере заказов.
	persisted, err := f.orders.Get(receipt.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if persisted.BuyerID != "buyer-1" {
		t.Errorf("BuyerID = %s, want buyer-1", persisted.BuyerID)
	}

	// Корзина очищена.
	cart, err := f.carts.Snapshot("buyer-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !cart.IsEmpty() {
		t.Errorf("cart should be empty after commit, has %d lines", len(cart.Lines))
	}

	// Таймлайн фиксирует резервирование и размещение заказа.
	events, err := f.timeline.List("buyer-1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if !hasEventType(events, "StockReserved") || !hasEventType(events, "OrderPlaced") {
		t.Errorf("timeline missing lifecycle events: %+v", events)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.workflow().PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card")
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestPlaceOrderInsufficientStockNoSideEffects(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", "Clock", 1500, 10)
	f.seedProduct(t, "p2", "Lamp", 700, 1)
	f.addToCart(t, "buyer-1", "p1", "Clock", 1500, 2)
	f.addToCart(t, "buyer-1", "p2", "Lamp", 700, 3)

	_, err := f.workflow().PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card")
	if !domain.IsInsufficientStock(err) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}

	stockErr, ok := domain.AsInsufficientStock(err)
	if !ok {
		t.Fatalf("err %v does not carry stock details", err)
	}
	if stockErr.ProductID != "p2" || stockErr.Requested != 3 || stockErr.Available != 1 {
		t.Errorf("details = %+v, want p2 requested=3 available=1", stockErr)
	}

	// Ни один товар не списан, включая p1, которого хватало.
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("p1 stock = %d, want 10", got)
	}
	if got := f.stock(t, "p2"); got != 1 {
		t.Errorf("p2 stock = %d, want 1", got)
	}

	// Корзина не тронута, заказов нет.
	cart, _ := f.carts.Snapshot("buyer-1")
	if len(cart.Lines) != 2 {
		t.Errorf("cart has %d lines, want 2", len(cart.Lines))
	}
	orders, _ := f.orders.ListByBuyer("buyer-1", 10)
	if len(orders) != 0 {
		t.Errorf("orders = %d, want 0", len(orders))
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	f := newFixture()
	f.addToCart(t, "buyer-1", "ghost", "Ghost", 100, 1)

	_, err := f.workflow().PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
}

// failingOrderRepo эмулирует недоступность хранилища заказов.
type failingOrderRepo struct {
	domain.OrderRepository
	appendCalls int
}

func (f *failingOrderRepo) Append(domain.Order) error {
	f.appendCalls++
	return domain.ErrPersistenceUnavailable
}

func TestPlaceOrderAppendFailureReleasesStock(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", "Clock", 1500, 10)
	f.addToCart(t, "buyer-1", "p1", "Clock", 1500, 4)

	failing := &failingOrderRepo{OrderRepository: f.orders}
	wf := NewWorkflowWithoutMetrics(f.carts, f.store, failing, f.outbox, f.timeline, nil)

	_, err := wf.PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card")
	if !domain.IsPersistenceUnavailable(err) {
		t.Fatalf("err = %v, want ErrPersistenceUnavailable", err)
	}
	if failing.appendCalls != 1 {
		t.Errorf("append calls = %d, want 1 (no auto-retry)", failing.appendCalls)
	}

	// Компенсация вернула сток и оставила корзину для повторной попытки.
	if got := f.stock(t, "p1"); got != 10 {
		t.Errorf("p1 stock = %d, want 10 after release", got)
	}
	cart, _ := f.carts.Snapshot("buyer-1")
	if len(cart.Lines) != 1 {
		t.Errorf("cart has %d lines, want 1", len(cart.Lines))
	}

	events, _ := f.timeline.List("buyer-1")
	if !hasEventType(events, "StockReleased") {
		t.Errorf("timeline missing StockReleased: %+v", events)
	}
}

// clearFailingCarts эмулирует сбой очистки корзины после фиксации заказа.
type clearFailingCarts struct {
	domain.CartRepository
}

func (c *clearFailingCarts) Clear(string) error {
	return errors.New("cart backend down")
}

func TestPlaceOrderClearFailureKeepsOrder(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", "Clock", 1500, 10)
	f.addToCart(t, "buyer-1", "p1", "Clock", 1500, 2)

	wf := NewWorkflowWithoutMetrics(&clearFailingCarts{CartRepository: f.carts}, f.store, f.orders, f.outbox, f.timeline, nil)

	receipt, err := wf.PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card")
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !errors.Is(receipt.Warning, domain.ErrCartClearFailed) {
		t.Fatalf("Warning = %v, want ErrCartClearFailed", receipt.Warning)
	}

	// Заказ зафиксирован и сток списан, несмотря на сбой очистки.
	if _, err := f.orders.Get(receipt.Order.ID); err != nil {
		t.Errorf("order should stay committed: %v", err)
	}
	if got := f.stock(t, "p1"); got != 8 {
		t.Errorf("p1 stock = %d, want 8", got)
	}
}

func TestPlaceOrderUsesCartSnapshotNotCatalog(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", "Clock v2", 9900, 10)
	// Позиция была добавлена до переименования и подорожания товара.
	f.addToCart(t, "buyer-1", "p1", "Clock", 1500, 1)

	receipt, err := f.workflow().PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card")
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	line := receipt.Order.Lines[0]
	if line.Name != "Clock" || line.PriceMinor != 1500 {
		t.Errorf("order line = %s/%d, want snapshot Clock/1500", line.Name, line.PriceMinor)
	}
	if receipt.Order.AmountMinor != 1500 {
		t.Errorf("AmountMinor = %d, want 1500", receipt.Order.AmountMinor)
	}
}

func TestPlaceOrderEnqueuesOutboxEvents(t *testing.T) {
	f := newFixture()
	f.seedProduct(t, "p1", "Clock", 1500, 10)
	f.addToCart(t, "buyer-1", "p1", "Clock", 1500, 1)

	if _, err := f.workflow().PlaceOrder("buyer-1", domain.Address{Line1: "x"}, "card"); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	pending, err := f.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) == 0 {
		t.Fatal("outbox should hold lifecycle events")
	}
	var hasOrderPlaced bool
	for _, msg := range pending {
		if msg.EventType == "OrderPlaced" {
			hasOrderPlaced = true
		}
	}
	if !hasOrderPlaced {
		t.Errorf("outbox missing OrderPlaced event: %+v", pending)
	}
}

func hasEventType(events []domain.TimelineEvent, eventType string) bool {
	for _, e := range events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}
