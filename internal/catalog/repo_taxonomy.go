package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrUnitExists       = errors.New("unit already exists")
	ErrUnitNotFound     = errors.New("unit not found")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) CreateCategory(ctx context.Context, name string) (Category, error) {
	c := Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug.Make(name),
		CreatedAt: time.Now().UTC(),
	}
	c.UpdatedAt = c.CreatedAt

	_, err := r.DB.Exec(ctx, `
		INSERT INTO categories (id, name, slug, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)`, c.ID, c.Name, c.Slug, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return Category{}, ErrCategoryExists
	}
	if err != nil {
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, slug, created_at, updated_at FROM categories ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateCategory(ctx context.Context, id uuid.UUID, name string) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `
		UPDATE categories SET name=$2, slug=$3, updated_at=now()
		WHERE id=$1
		RETURNING id, name, slug, created_at, updated_at`,
		id, name, slug.Make(name)).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrCategoryNotFound
	}
	if isUniqueViolation(err) {
		return Category{}, ErrCategoryExists
	}
	if err != nil {
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

func (r *Repo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *Repo) CreateUnit(ctx context.Context, name string) (Unit, error) {
	u := Unit{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	u.UpdatedAt = u.CreatedAt

	_, err := r.DB.Exec(ctx, `
		INSERT INTO units (id, name, created_at, updated_at)
		VALUES ($1,$2,$3,$4)`, u.ID, u.Name, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return Unit{}, ErrUnitExists
	}
	if err != nil {
		return Unit{}, fmt.Errorf("insert unit: %w", err)
	}
	return u, nil
}

func (r *Repo) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, created_at, updated_at FROM units ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateUnit(ctx context.Context, id uuid.UUID, name string) (Unit, error) {
	var u Unit
	err := r.DB.QueryRow(ctx, `
		UPDATE units SET name=$2, updated_at=now()
		WHERE id=$1
		RETURNING id, name, created_at, updated_at`, id, name).
		Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrUnitNotFound
	}
	if isUniqueViolation(err) {
		return Unit{}, ErrUnitExists
	}
	if err != nil {
		return Unit{}, fmt.Errorf("update unit: %w", err)
	}
	return u, nil
}

func (r *Repo) DeleteUnit(ctx context.Context, id uuid.UUID) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM units WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUnitNotFound
	}
	return nil
}
