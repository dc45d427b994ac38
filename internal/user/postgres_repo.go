package user

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

const selectUser = `
	SELECT id, email, COALESCE(display_name, ''), password_hash, role, created_at, updated_at
	FROM users`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *PostgresRepo) Create(ctx context.Context, u *User) error {
	const query = `
	INSERT INTO users (id, email, display_name, password_hash, role)
	VALUES (gen_random_uuid(), $1, NULLIF($2, ''), $3, COALESCE(NULLIF($4, ''), 'USER'))
	RETURNING id, role, created_at, updated_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, u.Email, u.DisplayName, u.Password, u.Role).
		Scan(&u.ID, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(timeoutCtx, selectUser+` WHERE email = $1 LIMIT 1`, email))
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(timeoutCtx, selectUser+` WHERE id = $1 LIMIT 1`, id))
}

func (r *PostgresRepo) SetDisplayName(ctx context.Context, userID string, name *string) (User, error) {
	const query = `
	UPDATE users SET display_name = NULLIF($1, ''), updated_at = now()
	WHERE id = $2
	RETURNING id, email, COALESCE(display_name, ''), password_hash, role, created_at, updated_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanUser(r.db.QueryRow(timeoutCtx, query, name, userID))
}
