package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

type addressPayload struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
	Line3 string `json:"line3,omitempty"`
}

type placeOrderRequest struct {
	BuyerID      string         `json:"buyer_id"`
	PaymentLabel string         `json:"payment_label"`
	Address      addressPayload `json:"address"`
}

type orderLineResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Qty        int32  `json:"qty"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	BuyerID      string              `json:"buyer_id"`
	Lines        []orderLineResponse `json:"lines"`
	AmountMinor  int64               `json:"amount_minor"`
	PaymentLabel string              `json:"payment_label"`
	Address      addressPayload      `json:"address"`
	PlacedAt     time.Time           `json:"placed_at"`
}

type placeOrderResponse struct {
	Order   orderResponse `json:"order"`
	Warning string        `json:"warning,omitempty"`
}

func toOrderResponse(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ID:         line.ID,
			ProductID:  line.ProductID,
			Name:       line.Name,
			PriceMinor: line.PriceMinor,
			Qty:        line.Qty,
		})
	}
	return orderResponse{
		ID:           order.ID,
		BuyerID:      order.BuyerID,
		Lines:        lines,
		AmountMinor:  order.AmountMinor,
		PaymentLabel: order.PaymentLabel,
		Address: addressPayload{
			Line1: order.Address.Line1,
			Line2: order.Address.Line2,
			Line3: order.Address.Line3,
		},
		PlacedAt: order.PlacedAt,
	}
}

// placeOrder оформляет заказ из корзины покупателя. При наличии заголовка
// Idempotency-Key повтор того же запроса возвращает сохранённый ответ,
// не запуская оформление заново.
func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read body failed"})
		return
	}

	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key != "" && s.idempotency != nil {
		requestHash := hashRequestBody(body)
		_, err := s.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(s.idempotencyTTL))
		if err != nil {
			s.replayOrReject(w, key, err)
			return
		}

		status, payload := s.executeCheckout(req)
		if status < http.StatusBadRequest {
			if markErr := s.idempotency.MarkDone(key, payload, status); markErr != nil {
				s.logger.WithError(markErr).WithField("idempotency_key", key).Warn("mark idempotency done failed")
			}
		} else {
			if markErr := s.idempotency.MarkFailed(key, payload, status); markErr != nil {
				s.logger.WithError(markErr).WithField("idempotency_key", key).Warn("mark idempotency failed failed")
			}
		}
		writeRaw(w, status, payload)
		return
	}

	status, payload := s.executeCheckout(req)
	writeRaw(w, status, payload)
}

// executeCheckout выполняет оформление и сериализует результат, чтобы один и
// тот же payload можно было и отдать клиенту, и сохранить для replay.
func (s *Server) executeCheckout(req placeOrderRequest) (int, []byte) {
	receipt, err := s.checkout.PlaceOrder(req.BuyerID, domain.Address{
		Line1: req.Address.Line1,
		Line2: req.Address.Line2,
		Line3: req.Address.Line3,
	}, req.PaymentLabel)
	if err != nil {
		return marshalCheckoutError(err)
	}

	resp := placeOrderResponse{Order: toOrderResponse(receipt.Order)}
	if receipt.Warning != nil {
		resp.Warning = receipt.Warning.Error()
	}

	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return http.StatusInternalServerError, []byte(`{"error":"marshal response failed"}`)
	}
	return http.StatusCreated, payload
}

func marshalCheckoutError(err error) (int, []byte) {
	status := statusForError(err)
	resp := errorResponse{Error: err.Error()}
	if stockErr, ok := domain.AsInsufficientStock(err); ok {
		resp.ProductID = stockErr.ProductID
		resp.Requested = stockErr.Requested
		resp.Available = stockErr.Available
	}
	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return http.StatusInternalServerError, []byte(`{"error":"marshal response failed"}`)
	}
	return status, payload
}

// replayOrReject обрабатывает конфликт idempotency-ключа: завершённый запрос
// реплеится из сохранённого ответа, незавершённый отклоняется.
func (s *Server) replayOrReject(w http.ResponseWriter, key string, createErr error) {
	if errors.Is(createErr, domain.ErrIdempotencyHashMismatch) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "idempotency key re-used with different request"})
		return
	}
	if !errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists) {
		writeDomainError(w, createErr)
		return
	}

	record, err := s.idempotency.Get(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	switch record.Status {
	case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
		writeRaw(w, record.HTTPStatus, record.ResponseBody)
	default:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "request with this idempotency key is being processed"})
	}
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func hashRequestBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func writeRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	if status <= 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
