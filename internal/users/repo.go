package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrNotWholesaler = errors.New("user is not a wholesaler")
)

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, first_name, last_name, email, password_hash, role, verified, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *Repo) Create(ctx context.Context, u User) (User, error) {
	u.ID = uuid.New()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.DB.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role, verified, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// PendingWholesalers lists wholesaler accounts awaiting admin approval,
// newest first.
func (r *Repo) PendingWholesalers(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role=$1 AND NOT verified
		ORDER BY created_at DESC`, RoleWholesaler)
	if err != nil {
		return nil, fmt.Errorf("list pending wholesalers: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) ApproveWholesaler(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Role != RoleWholesaler {
		return User{}, ErrNotWholesaler
	}
	_, err = r.DB.Exec(ctx, `UPDATE users SET verified=TRUE, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return User{}, fmt.Errorf("approve wholesaler: %w", err)
	}
	u.Verified = true
	return u, nil
}

// RejectWholesaler removes an unapproved wholesaler application.
func (r *Repo) RejectWholesaler(ctx context.Context, id uuid.UUID) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role != RoleWholesaler {
		return ErrNotWholesaler
	}
	_, err = r.DB.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("reject wholesaler: %w", err)
	}
	return nil
}
