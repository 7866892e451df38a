package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepository хранит корзины в PostgreSQL: одна строка на пару
// (покупатель, товар). Слияние по товару выполняется через ON CONFLICT:
// количества суммируются, исходный snapshot имени/цены не перезаписывается.
type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Snapshot(buyerID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, price_minor, qty, added_at
		FROM cart_lines
		WHERE buyer_id = $1
		ORDER BY added_at ASC, product_id ASC
	`, buyerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("snapshot cart: %w", err)
	}
	defer rows.Close()

	cart := domain.Cart{BuyerID: buyerID, Lines: make([]domain.CartLine, 0)}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.PriceMinor, &line.Qty, &line.AddedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart lines: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) AddLine(buyerID string, line domain.CartLine) error {
	if line.Qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if line.AddedAt.IsZero() {
		line.AddedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_lines (buyer_id, product_id, name, price_minor, qty, added_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (buyer_id, product_id)
		DO UPDATE SET qty = cart_lines.qty + EXCLUDED.qty
	`, buyerID, line.ProductID, line.Name, line.PriceMinor, line.Qty, line.AddedAt); err != nil {
		return fmt.Errorf("add cart line: %w", err)
	}

	return nil
}

func (r *cartRepository) SetLineQty(buyerID, productID string, qty int32) error {
	if qty < 0 {
		return domain.ErrInvalidQuantity
	}
	if qty == 0 {
		return r.RemoveLine(buyerID, productID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_lines
		SET qty = $3
		WHERE buyer_id = $1
		  AND product_id = $2
	`, buyerID, productID, qty)
	if err != nil {
		return fmt.Errorf("set cart line qty: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cart rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrLineNotFound
	}

	return nil
}

func (r *cartRepository) RemoveLine(buyerID, productID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE buyer_id = $1
		  AND product_id = $2
	`, buyerID, productID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cart rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrLineNotFound
	}

	return nil
}

func (r *cartRepository) Clear(buyerID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE buyer_id = $1
	`, buyerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
