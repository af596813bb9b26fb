package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

const productSelect = `
	SELECT p.id, p.name, p.category_id, COALESCE(c.name,''), p.unit_id, COALESCE(u.name,''),
	       p.base_cost_cents, p.wholesaler_price_cents, p.retailer_price_override_cents,
	       p.stock, p.description, p.image, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN units u ON u.id = p.unit_id`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.UnitID, &p.UnitName,
		&p.BaseCostCents, &p.WholesalerPriceCents, &p.RetailerOverrideCents,
		&p.Stock, &p.Description, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, productSelect+` WHERE p.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, productSelect+` ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, name, category_id, unit_id, base_cost_cents, wholesaler_price_cents,
		                      retailer_price_override_cents, stock, description, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.Name, p.CategoryID, p.UnitID, p.BaseCostCents, p.WholesalerPriceCents,
		p.RetailerOverrideCents, p.Stock, p.Description, p.Image, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return r.GetProduct(ctx, p.ID)
}

func (r *Repo) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, category_id=$3, unit_id=$4, base_cost_cents=$5,
		       wholesaler_price_cents=$6, retailer_price_override_cents=$7, stock=$8,
		       description=$9, image=$10, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Name, p.CategoryID, p.UnitID, p.BaseCostCents, p.WholesalerPriceCents,
		p.RetailerOverrideCents, p.Stock, p.Description, p.Image)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return r.GetProduct(ctx, p.ID)
}

func (r *Repo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
