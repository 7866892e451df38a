package domain

import "time"

// CartLine — одна позиция корзины. Name и PriceMinor фиксируются в момент
// добавления товара и не меняются при последующих изменениях каталога.
type CartLine struct {
	ProductID  string
	Name       string
	PriceMinor int64
	Qty        int32
	AddedAt    time.Time
}

// Cart агрегирует отложенные позиции одного покупателя.
// Инвариант: не более одной позиции на товар (ключ — ProductID).
type Cart struct {
	BuyerID string
	Lines   []CartLine
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Line возвращает позицию по товару, если она есть.
func (c *Cart) Line(productID string) (CartLine, bool) {
	for _, line := range c.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// TotalMinor возвращает сумму корзины по snapshot-ценам.
func (c *Cart) TotalMinor() int64 {
	var total int64
	for _, line := range c.Lines {
		total += int64(line.Qty) * line.PriceMinor
	}
	return total
}
