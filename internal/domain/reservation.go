package domain

import (
	"sort"
	"time"
)

// Demand — требование зарезервировать Qty единиц товара ProductID.
type Demand struct {
	ProductID string
	Qty       int32
}

// SortDemands упорядочивает требования по возрастанию ID товара.
// Единый порядок проверки и захвата блокировок исключает circular wait
// между конкурентными резервированиями пересекающихся наборов товаров.
func SortDemands(demands []Demand) {
	sort.Slice(demands, func(i, j int) bool {
		return demands[i].ProductID < demands[j].ProductID
	})
}

// CoalesceDemands возвращает копию требований, упорядоченную по возрастанию
// ID товара, с объединением дублей одного товара суммированием количеств.
// Дубль в наборе иначе означал бы повторный захват блокировки товара внутри
// одного резервирования.
func CoalesceDemands(demands []Demand) []Demand {
	sorted := make([]Demand, len(demands))
	copy(sorted, demands)
	SortDemands(sorted)

	coalesced := sorted[:0]
	for _, d := range sorted {
		if n := len(coalesced); n > 0 && coalesced[n-1].ProductID == d.ProductID {
			coalesced[n-1].Qty += d.Qty
			continue
		}
		coalesced = append(coalesced, d)
	}
	return coalesced
}

// ReservationStatus отражает состояние резерва в леджере.
type ReservationStatus string

const (
	// ReservationStatusReserved — сток списан и удерживается под заказ.
	ReservationStatusReserved ReservationStatus = "reserved"
	// ReservationStatusReleased — резерв снят, сток возвращён (компенсация).
	ReservationStatusReleased ReservationStatus = "released"
)

// ReservationLine фиксирует списанное количество по одному товару.
type ReservationLine struct {
	ProductID string
	Qty       int32
}

// Reservation — handle успешного атомарного резервирования. Достаточен для
// симметричного Release; повторный Release того же handle — no-op.
type Reservation struct {
	ID        string
	Lines     []ReservationLine
	CreatedAt time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля требования.
func (d Demand) Validate() []error {
	var errs []error

	if d.ProductID == "" {
		errs = append(errs, ErrProductNotFound)
	}
	if d.Qty <= 0 {
		errs = append(errs, ErrInvalidQuantity)
	}

	return errs
}
