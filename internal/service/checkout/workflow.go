package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Workflow описывает интерфейс оформления заказа.
type Workflow interface {
	// PlaceOrder превращает корзину покупателя в зафиксированный заказ.
	PlaceOrder(buyerID string, address domain.Address, paymentLabel string) (Receipt, error)
}

// Receipt — результат успешного оформления. Warning не пуст только в случае
// ErrCartClearFailed: заказ зафиксирован, сток списан, но корзина не очищена.
type Receipt struct {
	Order   domain.Order
	Warning error
}

// workflow реализует последовательность шагов: Snapshot → Reserve → Append → Clear,
// с компенсирующим Release, если Append упал после успешного резервирования.
type workflow struct {
	carts         domain.CartRepository
	ledger        domain.InventoryLedger
	orders        domain.OrderRepository
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
}

// NewWorkflow создаёт рабочий экземпляр оформления.
func NewWorkflow(
	carts domain.CartRepository,
	ledger domain.InventoryLedger,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &workflow{
		carts:    carts,
		ledger:   ledger,
		orders:   orders,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
	}
}

// NewWorkflowWithKafka создаёт оформление с Kafka producer для event-driven архитектуры.
func NewWorkflowWithKafka(
	carts domain.CartRepository,
	ledger domain.InventoryLedger,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &workflow{
		carts:         carts,
		ledger:        ledger,
		orders:        orders,
		outbox:        outbox,
		timeline:      timeline,
		logger:        logger,
		metrics:       metrics.NewCheckoutMetrics(),
		kafkaProducer: kafkaProducer,
	}
}

// NewWorkflowWithoutMetrics создаёт оформление без метрик (для тестов).
func NewWorkflowWithoutMetrics(
	carts domain.CartRepository,
	ledger domain.InventoryLedger,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Workflow {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &workflow{
		carts:    carts,
		ledger:   ledger,
		orders:   orders,
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
	}
}

// PlaceOrder выполняет один логический переход корзина→заказ.
// Любой сбой до записи заказа оставляет корзину и сток нетронутыми;
// сбой после резервирования компенсируется ровно одним Release.
func (w *workflow) PlaceOrder(buyerID string, address domain.Address, paymentLabel string) (Receipt, error) {
	start := time.Now()
	if w.metrics != nil {
		w.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if buyerID == "" {
		return Receipt{}, w.abort(buyerID, "buyer_required", domain.ErrBuyerRequired)
	}

	cart, err := w.carts.Snapshot(buyerID)
	if err != nil {
		return Receipt{}, w.abort(buyerID, "snapshot_failed", fmt.Errorf("cart snapshot: %w", domain.ErrPersistenceUnavailable))
	}
	if cart.IsEmpty() {
		return Receipt{}, w.abort(buyerID, "empty_cart", domain.ErrEmptyCart)
	}

	// Требования в порядке возрастания ID товара: единый порядок проверки
	// и захвата блокировок для всех конкурентных оформлений.
	demands := make([]domain.Demand, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		demands = append(demands, domain.Demand{ProductID: line.ProductID, Qty: line.Qty})
	}
	domain.SortDemands(demands)

	reserveStart := time.Now()
	reservation, err := w.ledger.Reserve(demands)
	if w.metrics != nil {
		w.metrics.RecordStepDuration("reserve", time.Since(reserveStart))
	}
	if err != nil {
		reason := "reserve_failed"
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			reason = "product_not_found"
		case domain.IsInsufficientStock(err):
			reason = "insufficient_stock"
		}
		// Леджер гарантирует отсутствие побочных эффектов: корзина и сток
		// ровно такие же, как до вызова.
		return Receipt{}, w.abort(buyerID, reason, err)
	}

	w.emitEvent(buyerID, "", "StockReserved", map[string]interface{}{
		"reservation_id": reservation.ID,
		"lines":          len(reservation.Lines),
	})
	w.publishCheckoutEvent(kafka.EventTypeStockReserved, buyerID, "", map[string]interface{}{
		"reservation_id": reservation.ID,
	})

	order := buildOrder(buyerID, cart, address, paymentLabel)

	appendStart := time.Now()
	err = w.orders.Append(order)
	if w.metrics != nil {
		w.metrics.RecordStepDuration("append", time.Since(appendStart))
	}
	if err != nil {
		// Ровно одна компенсация: возвращаем сток и оставляем корзину,
		// чтобы покупатель мог повторить попытку.
		if releaseErr := w.ledger.Release(reservation); releaseErr != nil {
			w.logger.WithError(releaseErr).WithFields(log.Fields{
				"buyer_id":       buyerID,
				"reservation_id": reservation.ID,
			}).Error("compensating release failed")
		} else if w.metrics != nil {
			w.metrics.RecordStockReleased()
		}
		w.emitEvent(buyerID, "", "StockReleased", map[string]interface{}{
			"reservation_id": reservation.ID,
			"reason":         err.Error(),
		})
		w.publishCheckoutEvent(kafka.EventTypeStockReleased, buyerID, "", nil)

		return Receipt{}, w.abort(buyerID, "append_failed", fmt.Errorf("append order: %w", domain.ErrPersistenceUnavailable))
	}

	w.emitEvent(buyerID, order.ID, "OrderPlaced", map[string]interface{}{
		"amount_minor":  order.AmountMinor,
		"payment_label": order.PaymentLabel,
		"lines":         len(order.Lines),
	})
	w.publishCheckoutEvent(kafka.EventTypeOrderPlaced, buyerID, order.ID, map[string]interface{}{
		"amount": order.AmountMinor,
	})

	receipt := Receipt{Order: order}

	clearStart := time.Now()
	err = w.carts.Clear(buyerID)
	if w.metrics != nil {
		w.metrics.RecordStepDuration("clear", time.Since(clearStart))
	}
	if err != nil {
		// Заказ уже зафиксирован и сток списан; откатывать нечего.
		// Залежавшаяся корзина не создаёт складской несогласованности.
		w.logger.WithError(err).WithFields(log.Fields{
			"buyer_id": buyerID,
			"order_id": order.ID,
		}).Warn("cart clear failed after commit")
		if w.metrics != nil {
			w.metrics.RecordCartClearFailed()
		}
		w.emitEvent(buyerID, order.ID, "CartClearFailed", map[string]interface{}{
			"reason": err.Error(),
		})
		receipt.Warning = domain.ErrCartClearFailed
	}

	if w.metrics != nil {
		w.metrics.RecordCheckoutCommitted()
	}
	w.logger.WithFields(log.Fields{
		"buyer_id": buyerID,
		"order_id": order.ID,
		"amount":   order.AmountMinor,
	}).Info("checkout committed")
	w.publishCheckoutEvent(kafka.EventTypeCheckoutCommitted, buyerID, order.ID, map[string]interface{}{
		"amount": order.AmountMinor,
	})

	return receipt, nil
}

// buildOrder собирает заказ из snapshot корзины: позиции наследуют
// зафиксированные при добавлении имя и цену, а не текущие значения каталога.
func buildOrder(buyerID string, cart domain.Cart, address domain.Address, paymentLabel string) domain.Order {
	now := time.Now().UTC()
	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, domain.OrderLine{
			ID:         uuid.NewString(),
			ProductID:  line.ProductID,
			Name:       line.Name,
			PriceMinor: line.PriceMinor,
			Qty:        line.Qty,
		})
	}

	return domain.Order{
		ID:           uuid.NewString(),
		BuyerID:      buyerID,
		Lines:        lines,
		AmountMinor:  cart.TotalMinor(),
		PaymentLabel: paymentLabel,
		Address:      address,
		PlacedAt:     now,
	}
}

func (w *workflow) abort(buyerID, reason string, err error) error {
	if w.metrics != nil {
		w.metrics.RecordCheckoutAborted(reason)
	}
	w.logger.WithError(err).WithFields(log.Fields{
		"buyer_id": buyerID,
		"reason":   reason,
	}).Warn("checkout aborted")
	w.emitEvent(buyerID, "", "CheckoutAborted", map[string]interface{}{
		"reason": reason,
	})
	w.publishCheckoutEvent(kafka.EventTypeCheckoutAborted, buyerID, "", map[string]interface{}{
		"reason": reason,
	})
	return err
}

func (w *workflow) emitEvent(buyerID, orderID, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["buyer_id"] = buyerID
	if orderID != "" {
		payload["order_id"] = orderID
	}
	occurred := time.Now().UTC()
	payload["ts"] = occurred.Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"buyer_id": buyerID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	if w.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "checkout",
			AggregateID:   buyerID,
			EventType:     eventType,
			Payload:       data,
		}
		if orderID != "" {
			msg.AggregateType = "order"
			msg.AggregateID = orderID
		}
		if _, err := w.outbox.Enqueue(msg); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"buyer_id": buyerID,
				"event":    eventType,
			}).Error("enqueue event failed")
		} else if w.metrics != nil {
			w.metrics.RecordOutboxEvent()
		}
	}

	if w.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			BuyerID:  buyerID,
			OrderID:  orderID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := w.timeline.Append(event); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"buyer_id": buyerID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if w.metrics != nil {
			w.metrics.RecordTimelineEvent()
		}
	}
}

// publishCheckoutEvent публикует событие оформления в Kafka (если producer настроен)
func (w *workflow) publishCheckoutEvent(eventType kafka.EventType, buyerID, orderID string, metadata map[string]interface{}) {
	if w.kafkaProducer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewCheckoutEvent(eventType, buyerID, orderID, metadata)
	if err := w.kafkaProducer.PublishEvent(kafka.TopicCheckoutEvents, buyerID, event); err != nil {
		// Логируем ошибку, но не прерываем оформление - Kafka опциональный
		w.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"buyer_id":   buyerID,
		}).Warn("failed to publish checkout event to kafka")
	}
}

var _ Workflow = (*workflow)(nil)
