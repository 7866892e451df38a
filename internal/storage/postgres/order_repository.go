package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

// orderRepository — append-only леджер заказов. UPDATE и DELETE по orders
// не выполняются никогда; фиксация заказа — единственная операция записи.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Append(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", wrapUnavailable(err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_id, amount_minor, payment_label,
			address_line1, address_line2, address_line3, placed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		order.ID, order.BuyerID, order.AmountMinor, order.PaymentLabel,
		order.Address.Line1, order.Address.Line2, order.Address.Line3, order.PlacedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert order: %w", wrapUnavailable(err))
	}

	for position, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, position, product_id, name, price_minor, qty
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			line.ID, order.ID, position, line.ProductID, line.Name, line.PriceMinor, line.Qty,
		); err != nil {
			return fmt.Errorf("insert order line: %w", wrapUnavailable(err))
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append order: %w", wrapUnavailable(err))
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, amount_minor, payment_label,
		       address_line1, address_line2, address_line3, placed_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.BuyerID, &order.AmountMinor, &order.PaymentLabel,
		&order.Address.Line1, &order.Address.Line2, &order.Address.Line3, &order.PlacedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByBuyer(buyerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, buyer_id, amount_minor, payment_label,
		       address_line1, address_line2, address_line3, placed_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY placed_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", buyerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, buyerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.BuyerID, &order.AmountMinor, &order.PaymentLabel,
			&order.Address.Line1, &order.Address.Line2, &order.Address.Line3, &order.PlacedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		lines, err := r.loadLines(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Lines = lines
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, name, price_minor, qty
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Name, &line.PriceMinor, &line.Qty); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

// wrapUnavailable помечает инфраструктурную ошибку записи как
// ErrPersistenceUnavailable, сохраняя исходную причину в цепочке.
func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
