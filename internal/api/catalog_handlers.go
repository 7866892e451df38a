package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type createProductRequest struct {
	SellerID   string `json:"seller_id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int32  `json:"quantity"`
}

type restockRequest struct {
	SellerID string `json:"seller_id"`
	Qty      int32  `json:"qty"`
}

type productResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Quantity   int32     `json:"quantity"`
	SellerID   string    `json:"seller_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		Quantity:   p.Quantity,
		SellerID:   p.SellerID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	product, err := s.catalog.AddProduct(req.SellerID, req.Name, req.PriceMinor, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.GetProduct(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := parseLimit(r, 50)

	products, err := s.catalog.Search(query, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listSellerProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListBySeller(chi.URLParam(r, "id"), parseLimit(r, 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) restockProduct(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	product, err := s.catalog.Restock(req.SellerID, chi.URLParam(r, "id"), req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
