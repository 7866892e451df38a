package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:           "order-1",
		BuyerID:      "buyer-1",
		AmountMinor:  3000,
		PaymentLabel: "cash on delivery",
		Address:      domain.Address{Line1: "221B Baker St", Line2: "London", Line3: "NW1"},
		Lines: []domain.OrderLine{{
			ID:         "line-1",
			ProductID:  "product-1",
			Name:       "Teapot",
			PriceMinor: 1000,
			Qty:        3,
		}},
		PlacedAt: now,
	}
}

func TestOrderValidateInvariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Order)
		wantErr []error
	}{
		{
			name:    "valid order",
			mutate:  func(o *domain.Order) {},
			wantErr: nil,
		},
		{
			name:    "missing buyer",
			mutate:  func(o *domain.Order) { o.BuyerID = "" },
			wantErr: []error{domain.ErrBuyerRequired},
		},
		{
			name: "no lines",
			mutate: func(o *domain.Order) {
				o.Lines = nil
				o.AmountMinor = 0
			},
			wantErr: []error{domain.ErrLinesRequired},
		},
		{
			name:    "zero qty line",
			mutate:  func(o *domain.Order) { o.Lines[0].Qty = 0 },
			wantErr: []error{domain.ErrInvalidQuantity, domain.ErrAmountMismatch},
		},
		{
			name:    "negative price line",
			mutate:  func(o *domain.Order) { o.Lines[0].PriceMinor = -1 },
			wantErr: []error{domain.ErrLinePriceInvalid, domain.ErrAmountMismatch},
		},
		{
			name:    "amount mismatch",
			mutate:  func(o *domain.Order) { o.AmountMinor = 1 },
			wantErr: []error{domain.ErrAmountMismatch},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := makeOrder()
			tt.mutate(&order)

			errs := order.ValidateInvariants()
			if len(errs) != len(tt.wantErr) {
				t.Fatalf("ValidateInvariants() returned %d errors %v, want %d", len(errs), errs, len(tt.wantErr))
			}
			for i, want := range tt.wantErr {
				if !errors.Is(errs[i], want) {
					t.Errorf("error[%d] = %v, want %v", i, errs[i], want)
				}
			}
		})
	}
}

func TestProductValidateInvariants(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
		wantErr []error
	}{
		{
			name:    "valid product",
			product: domain.Product{ID: "p-1", Name: "Teapot", PriceMinor: 1000, Quantity: 5, SellerID: "s-1"},
			wantErr: nil,
		},
		{
			name:    "missing name and seller",
			product: domain.Product{ID: "p-2"},
			wantErr: []error{domain.ErrProductNameRequired, domain.ErrSellerRequired},
		},
		{
			name:    "negative price",
			product: domain.Product{ID: "p-3", Name: "Cup", PriceMinor: -5, SellerID: "s-1"},
			wantErr: []error{domain.ErrProductPriceInvalid},
		},
		{
			name:    "negative quantity",
			product: domain.Product{ID: "p-4", Name: "Cup", PriceMinor: 5, Quantity: -1, SellerID: "s-1"},
			wantErr: []error{domain.ErrProductQuantityInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.product.ValidateInvariants()
			if len(errs) != len(tt.wantErr) {
				t.Fatalf("ValidateInvariants() returned %d errors %v, want %d", len(errs), errs, len(tt.wantErr))
			}
			for i, want := range tt.wantErr {
				if !errors.Is(errs[i], want) {
					t.Errorf("error[%d] = %v, want %v", i, errs[i], want)
				}
			}
		})
	}
}
