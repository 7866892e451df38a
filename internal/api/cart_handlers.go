package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type updateCartItemRequest struct {
	Qty int32 `json:"qty"`
}

type cartLineResponse struct {
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Qty        int32     `json:"qty"`
	AddedAt    time.Time `json:"added_at"`
}

type cartResponse struct {
	BuyerID    string             `json:"buyer_id"`
	Lines      []cartLineResponse `json:"lines"`
	TotalMinor int64              `json:"total_minor"`
}

func toCartResponse(c domain.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, cartLineResponse{
			ProductID:  line.ProductID,
			Name:       line.Name,
			PriceMinor: line.PriceMinor,
			Qty:        line.Qty,
			AddedAt:    line.AddedAt,
		})
	}
	return cartResponse{
		BuyerID:    c.BuyerID,
		Lines:      lines,
		TotalMinor: c.TotalMinor(),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.carts.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	cart, err := s.carts.AddItem(chi.URLParam(r, "id"), req.ProductID, req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	cart, err := s.carts.UpdateItem(chi.URLParam(r, "id"), chi.URLParam(r, "productID"), req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := s.carts.RemoveItem(chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.carts.Clear(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := s.orders.ListByBuyer(chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listBuyerTimeline(w http.ResponseWriter, r *http.Request) {
	if s.timeline == nil {
		writeJSON(w, http.StatusOK, []domain.TimelineEvent{})
		return
	}

	events, err := s.timeline.List(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type timelineEventResponse struct {
		BuyerID  string    `json:"buyer_id"`
		OrderID  string    `json:"order_id,omitempty"`
		Type     string    `json:"type"`
		Reason   string    `json:"reason,omitempty"`
		Occurred time.Time `json:"occurred"`
	}
	result := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEventResponse{
			BuyerID:  event.BuyerID,
			OrderID:  event.OrderID,
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	writeJSON(w, http.StatusOK, result)
}
