package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productLedger реализует каталог товаров и леджер остатков поверх PostgreSQL.
// Атомарность Reserve обеспечивается транзакцией: блокировки строк берутся
// через SELECT ... FOR UPDATE строго в порядке возрастания ID товара, поэтому
// конкурентные оформления с пересекающимися наборами не взаимоблокируются.
type productLedger struct {
	db *sql.DB
}

// NewProductLedger создаёт PostgreSQL-реализацию ProductRepository и InventoryLedger.
func NewProductLedger(store *Store) *productLedger {
	return &productLedger{db: store.DB()}
}

func (r *productLedger) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, price_minor, quantity, seller_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		product.ID, product.Name, product.PriceMinor, product.Quantity,
		product.SellerID, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductAlreadyExists
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productLedger) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price_minor, quantity, seller_id, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.PriceMinor, &product.Quantity,
		&product.SellerID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func (r *productLedger) SearchByName(query string, limit int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price_minor, quantity, seller_id, created_at, updated_at
		FROM products
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *productLedger) ListBySeller(sellerID string, limit int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price_minor, quantity, seller_id, created_at, updated_at
		FROM products
		WHERE seller_id = $1
		ORDER BY id
		LIMIT $2
	`, sellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list seller products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Reserve выполняет all-or-nothing списание стока по набору требований.
// Требования обрабатываются в порядке возрастания ID товара; первая проблема
// (неизвестный товар или дефицит) откатывает транзакцию целиком.
func (r *productLedger) Reserve(demands []domain.Demand) (domain.Reservation, error) {
	for _, demand := range demands {
		if errs := demand.Validate(); len(errs) > 0 {
			return domain.Reservation{}, errs[0]
		}
	}

	// Дубли одного товара суммируются, как и в in-memory леджере.
	sorted := domain.CoalesceDemands(demands)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	reservation := domain.Reservation{
		ID:        uuid.NewString(),
		Lines:     make([]domain.ReservationLine, 0, len(sorted)),
		CreatedAt: now,
	}

	for _, demand := range sorted {
		var available int32
		err = tx.QueryRowContext(ctx, `
			SELECT quantity
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, demand.ProductID).Scan(&available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = fmt.Errorf("reserve %s: %w", demand.ProductID, domain.ErrProductNotFound)
				return domain.Reservation{}, err
			}
			err = fmt.Errorf("lock product %s: %w", demand.ProductID, err)
			return domain.Reservation{}, err
		}

		if available < demand.Qty {
			err = &domain.InsufficientStockError{
				ProductID: demand.ProductID,
				Requested: demand.Qty,
				Available: available,
			}
			return domain.Reservation{}, err
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $2,
			    updated_at = $3
			WHERE id = $1
		`, demand.ProductID, demand.Qty, now); err != nil {
			err = fmt.Errorf("decrement product %s: %w", demand.ProductID, err)
			return domain.Reservation{}, err
		}

		reservation.Lines = append(reservation.Lines, domain.ReservationLine{
			ProductID: demand.ProductID,
			Qty:       demand.Qty,
		})
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4)
	`, reservation.ID, string(domain.ReservationStatusReserved), now, now); err != nil {
		err = fmt.Errorf("insert reservation: %w", err)
		return domain.Reservation{}, err
	}
	for _, line := range reservation.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO reservation_lines (reservation_id, product_id, qty)
			VALUES ($1,$2,$3)
		`, reservation.ID, line.ProductID, line.Qty); err != nil {
			err = fmt.Errorf("insert reservation line: %w", err)
			return domain.Reservation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Reservation{}, fmt.Errorf("commit reserve: %w", err)
	}

	return reservation, nil
}

// Release возвращает сток по handle. Повторный Release того же handle — no-op:
// переход reserved→released выполняется ровно один раз на уровне строки.
func (r *productLedger) Release(res domain.Reservation) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin release tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = $4
	`, res.ID, string(domain.ReservationStatusReleased), now, string(domain.ReservationStatusReserved))
	if err != nil {
		return fmt.Errorf("mark reservation released: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		var exists string
		err = tx.QueryRowContext(ctx, `SELECT id FROM reservations WHERE id = $1`, res.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrReservationNotFound
			return err
		}
		if err != nil {
			return fmt.Errorf("check reservation exists: %w", err)
		}
		// Уже released: идемпотентный повтор.
		err = tx.Commit()
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, qty
		FROM reservation_lines
		WHERE reservation_id = $1
		ORDER BY product_id
	`, res.ID)
	if err != nil {
		return fmt.Errorf("load reservation lines: %w", err)
	}

	lines := make([]domain.ReservationLine, 0)
	for rows.Next() {
		var line domain.ReservationLine
		if err = rows.Scan(&line.ProductID, &line.Qty); err != nil {
			rows.Close()
			return fmt.Errorf("scan reservation line: %w", err)
		}
		lines = append(lines, line)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate reservation lines: %w", err)
	}
	rows.Close()

	for _, line := range lines {
		if _, err = tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $2,
			    updated_at = $3
			WHERE id = $1
		`, line.ProductID, line.Qty, now); err != nil {
			return fmt.Errorf("restore product %s: %w", line.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	return nil
}

// Restock увеличивает остаток товара (ручное пополнение продавцом).
func (r *productLedger) Restock(productID string, qty int32) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING id, name, price_minor, quantity, seller_id, created_at, updated_at
	`, productID, qty, time.Now().UTC()).Scan(
		&product.ID, &product.Name, &product.PriceMinor, &product.Quantity,
		&product.SellerID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("restock product: %w", err)
	}

	return product, nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.Name, &product.PriceMinor, &product.Quantity,
			&product.SellerID, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

var _ domain.ProductRepository = (*productLedger)(nil)
var _ domain.InventoryLedger = (*productLedger)(nil)
