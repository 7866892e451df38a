package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	products := memory.NewProductStore()
	carts := memory.NewCartRepository()
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()

	cartSvc := cart.NewService(carts, products, nil)
	catalogSvc := catalog.NewService(products, products, nil)
	workflow := checkout.NewWorkflowWithoutMetrics(carts, products, orders, outbox, timeline, nil)

	srv := NewServer(cartSvc, catalogSvc, workflow, orders, Options{
		Timeline:    timeline,
		Idempotency: memory.NewIdempotencyRepository(),
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp, buf.Bytes()
}

func createTestProduct(t *testing.T, ts *httptest.Server, name string, price int64, qty int32) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/products", map[string]any{
		"seller_id":   "seller-1",
		"name":        name,
		"price_minor": price,
		"quantity":    qty,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created productResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestCheckoutHappyFlow(t *testing.T) {
	ts := newTestServer(t)

	productID := createTestProduct(t, ts, "Clock", 1500, 10)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/buyers/buyer-1/cart/items", map[string]any{
		"product_id": productID,
		"qty":        2,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", map[string]any{
		"buyer_id":      "buyer-1",
		"payment_label": "card",
		"address":       map[string]string{"line1": "Baker st. 221b"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var placed placeOrderResponse
	require.NoError(t, json.Unmarshal(body, &placed))
	require.Empty(t, placed.Warning)
	require.Equal(t, int64(3000), placed.Order.AmountMinor)
	require.Len(t, placed.Order.Lines, 1)
	require.Equal(t, "Clock", placed.Order.Lines[0].Name)

	// Корзина очищена.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/buyers/buyer-1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cartBody cartResponse
	require.NoError(t, json.Unmarshal(body, &cartBody))
	require.Empty(t, cartBody.Lines)

	// Сток списан.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/products/"+productID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product productResponse
	require.NoError(t, json.Unmarshal(body, &product))
	require.Equal(t, int32(8), product.Quantity)

	// Заказ доступен по ID и в списке покупателя.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/orders/"+placed.Order.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/buyers/buyer-1/orders", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []orderResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	ts := newTestServer(t)

	productID := createTestProduct(t, ts, "Lamp", 700, 1)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/buyers/buyer-1/cart/items", map[string]any{
		"product_id": productID,
		"qty":        3,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", map[string]any{
		"buyer_id":      "buyer-1",
		"payment_label": "card",
		"address":       map[string]string{"line1": "x"},
	}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errBody errorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	require.Equal(t, productID, errBody.ProductID)
	require.Equal(t, int32(3), errBody.Requested)
	require.Equal(t, int32(1), errBody.Available)

	// Корзина не тронута, оформление можно повторить после пополнения.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/buyers/buyer-1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cartBody cartResponse
	require.NoError(t, json.Unmarshal(body, &cartBody))
	require.Len(t, cartBody.Lines, 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", map[string]any{
		"buyer_id":      "buyer-1",
		"payment_label": "card",
		"address":       map[string]string{"line1": "x"},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	ts := newTestServer(t)

	productID := createTestProduct(t, ts, "Clock", 1500, 10)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/buyers/buyer-1/cart/items", map[string]any{
		"product_id": productID,
		"qty":        2,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	checkoutReq := map[string]any{
		"buyer_id":      "buyer-1",
		"payment_label": "card",
		"address":       map[string]string{"line1": "x"},
	}
	headers := map[string]string{idempotencyKeyHeader: "idem-1"}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", checkoutReq, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var first placeOrderResponse
	require.NoError(t, json.Unmarshal(body, &first))

	// Повтор с тем же ключом и телом возвращает сохранённый ответ,
	// не запуская новое оформление.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", checkoutReq, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var second placeOrderResponse
	require.NoError(t, json.Unmarshal(body, &second))
	require.Equal(t, first.Order.ID, second.Order.ID)

	// Заказ ровно один.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/buyers/buyer-1/orders", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []orderResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)

	// Сток списан один раз.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/products/"+productID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var product productResponse
	require.NoError(t, json.Unmarshal(body, &product))
	require.Equal(t, int32(8), product.Quantity)
}

func TestCheckoutIdempotencyHashMismatch(t *testing.T) {
	ts := newTestServer(t)

	productID := createTestProduct(t, ts, "Clock", 1500, 10)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/buyers/buyer-1/cart/items", map[string]any{
		"product_id": productID,
		"qty":        1,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	headers := map[string]string{idempotencyKeyHeader: "idem-2"}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", map[string]any{
		"buyer_id":      "buyer-1",
		"payment_label": "card",
		"address":       map[string]string{"line1": "x"},
	}, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Тот же ключ с другим телом отклоняется.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/checkout", map[string]any{
		"buyer_id":      "buyer-1",
		"payment_label": "cash",
		"address":       map[string]string{"line1": "x"},
	}, headers)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCartMergeAndUpdateViaAPI(t *testing.T) {
	ts := newTestServer(t)

	productID := createTestProduct(t, ts, "Clock", 1500, 100)

	for _, qty := range []int32{3, 5} {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/buyers/buyer-1/cart/items", map[string]any{
			"product_id": productID,
			"qty":        qty,
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/buyers/buyer-1/cart", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cartBody cartResponse
	require.NoError(t, json.Unmarshal(body, &cartBody))
	require.Len(t, cartBody.Lines, 1)
	require.Equal(t, int32(8), cartBody.Lines[0].Qty)

	url := fmt.Sprintf("%s/v1/buyers/buyer-1/cart/items/%s", ts.URL, productID)
	resp, _ = doJSON(t, http.MethodPut, url, map[string]any{"qty": 2}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, url, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, url, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/buyers/buyer-1/cart", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)

	productID := createTestProduct(t, ts, "Wall Clock", 1500, 10)
	createTestProduct(t, ts, "Desk Lamp", 700, 5)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/products?q=clock", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found []productResponse
	require.NoError(t, json.Unmarshal(body, &found))
	require.Len(t, found, 1)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/sellers/seller-1/products", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []productResponse
	require.NoError(t, json.Unmarshal(body, &mine))
	require.Len(t, mine, 2)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/products/"+productID+"/restock", map[string]any{
		"seller_id": "seller-1",
		"qty":       5,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restocked productResponse
	require.NoError(t, json.Unmarshal(body, &restocked))
	require.Equal(t, int32(15), restocked.Quantity)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/products/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
