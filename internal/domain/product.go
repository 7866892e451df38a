package domain

import "time"

// Product описывает товар каталога и его текущий остаток на складе.
type Product struct {
	ID string
	// Name — отображаемое имя товара; копируется в позиции корзины как snapshot.
	Name string
	// PriceMinor — цена за единицу в минимальных денежных единицах (например, копейки).
	PriceMinor int64
	// Quantity — остаток на складе; инвариант: никогда не отрицательный.
	Quantity int32
	// SellerID — владелец товара; только он пополняет остаток.
	SellerID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrProductQuantityInvalid)
	}

	return errs
}
