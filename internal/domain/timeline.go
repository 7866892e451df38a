package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле оформления заказа.
type TimelineEvent struct {
	BuyerID  string
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
