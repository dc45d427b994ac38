package collection

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

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

func (r *PostgresRepo) Insert(ctx context.Context, rec *Record) error {
	const sql = `
		INSERT INTO collection_records (user_id, name, types, abilities, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, name) DO NOTHING
		RETURNING id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, sql, rec.User, rec.Name, rec.Types, rec.Abilities, rec.Image, rec.CreatedAt).Scan(&rec.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyOwned
	}
	return err
}

func (r *PostgresRepo) FindByNameAndUser(ctx context.Context, name, user string) ([]Record, error) {
	const sql = `
		SELECT id, name, user_id, types, abilities, image, created_at
		FROM collection_records
		WHERE name = $1 AND user_id = $2`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, name, user)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *PostgresRepo) ListByUser(ctx context.Context, user string) ([]Record, error) {
	const sql = `
		SELECT id, name, user_id, types, abilities, image, created_at
		FROM collection_records
		WHERE user_id = $1
		ORDER BY created_at ASC, name ASC`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, user)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	const sql = `DELETE FROM collection_records WHERE id = $1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.User, &rec.Types, &rec.Abilities, &rec.Image, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
