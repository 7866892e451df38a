package domain

import "time"

// OrderLine — неизменяемый snapshot позиции корзины на момент оформления.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID         string
	ProductID  string
	Name       string
	PriceMinor int64
	Qty        int32
}

// Address — адрес доставки из трёх строк, как его собирает фронтенд.
type Address struct {
	Line1 string
	Line2 string
	Line3 string
}

// Order — зафиксированный заказ. Создаётся ровно один раз на успешное
// оформление; после записи в леджер не изменяется и не удаляется.
type Order struct {
	ID      string
	BuyerID string
	Lines   []OrderLine
	// AmountMinor — сумма заказа по snapshot-ценам позиций.
	AmountMinor int64
	// PaymentLabel — фиксированная метка способа оплаты; обработка платежей вне системы.
	PaymentLabel string
	Address      Address
	PlacedAt     time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += int64(line.Qty) * line.PriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
