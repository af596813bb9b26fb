package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateReserving writes the order, its items, and debits stock for
// every item inside one transaction. The decrement is conditional
// (stock >= qty), so two concurrent orders cannot both take the last
// units: the loser's decrement matches zero rows and the whole
// transaction rolls back with InsufficientStockError.
func (r *Repo) CreateReserving(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, payment_status, total_cents,
		                    shipping_address, phone, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.UserID, o.Status, o.PaymentStatus, o.TotalCents,
		o.ShippingAddress, o.Phone, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for pos, it := range o.Items {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			var name string
			var available int
			err := tx.QueryRow(ctx, `SELECT name, stock FROM products WHERE id=$1`, it.ProductID).
				Scan(&name, &available)
			if errors.Is(err, pgx.ErrNoRows) {
				return &ProductNotFoundError{ProductID: it.ProductID}
			}
			if err != nil {
				return fmt.Errorf("read stock: %w", err)
			}
			return &InsufficientStockError{
				ProductID: it.ProductID,
				Name:      name,
				Available: available,
				Requested: it.Qty,
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, position, qty, price_cents)
			VALUES ($1,$2,$3,$4,$5)`, o.ID, it.ProductID, pos, it.Qty, it.PriceCents)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, payment_status, total_cents,
		       shipping_address, phone, notes, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents,
			&o.ShippingAddress, &o.Phone, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := r.attachItems(ctx, []*Order{&o}); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListByUser returns the caller's own orders, newest first, with item
// product refs expanded to display name and image.
func (r *Repo) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, payment_status, total_cents,
		       shipping_address, phone, notes, created_at, updated_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, refs(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every order, newest first, purchaser expanded to
// name and email.
func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.user_id, o.status, o.payment_status, o.total_cents,
		       o.shipping_address, o.phone, o.notes, o.created_at, o.updated_at,
		       u.first_name || ' ' || u.last_name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents,
			&o.ShippingAddress, &o.Phone, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
			&o.BuyerName, &o.BuyerEmail); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, refs(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus applies a transition under a row lock, rejecting moves
// the transition table does not allow. Returns the previous status.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (Status, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock order: %w", err)
	}

	if !CanTransition(from, to) {
		return "", &InvalidTransitionError{From: from, To: to}
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, to); err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return from, nil
}

func (r *Repo) GetStatus(ctx context.Context, id uuid.UUID) (Status, error) {
	var s Status
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return s, nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents,
			&o.ShippingAddress, &o.Phone, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func refs(orders []Order) []*Order {
	out := make([]*Order, len(orders))
	for i := range orders {
		out[i] = &orders[i]
	}
	return out
}

// attachItems loads the items of the given orders in one query, product
// refs expanded, each order's items in submission order.
func (r *Repo) attachItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.order_id, oi.product_id, oi.qty, oi.price_cents,
		       COALESCE(p.name, ''), p.image
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var it OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Qty, &it.PriceCents,
			&it.ProductName, &it.ProductImage); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}
