package pokemon

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository interface {
	CreateRun(ctx context.Context, run *LoadRun) (string, error)
	UpdateRun(ctx context.Context, run *LoadRun) error
	ListRuns(ctx context.Context, identity string, limit int) ([]LoadRun, error)
}

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

func (r *PostgresRepo) CreateRun(ctx context.Context, run *LoadRun) (string, error) {
	const sql = `
		INSERT INTO catalog_loads (identity, seq, status, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var id string
	err := r.db.QueryRow(timeoutCtx, sql, run.Identity, int64(run.Seq), string(run.Status), run.StartedAt).Scan(&id)
	return id, err
}

func (r *PostgresRepo) UpdateRun(ctx context.Context, run *LoadRun) error {
	const sql = `
		UPDATE catalog_loads SET
			finished_at = $1,
			status = $2,
			entries = $3,
			error = $4
		WHERE id = $5`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, sql, run.FinishedAt, string(run.Status), run.Entries, run.Error, run.ID)
	return err
}

func (r *PostgresRepo) ListRuns(ctx context.Context, identity string, limit int) ([]LoadRun, error) {
	const sql = `
		SELECT id, identity, seq, status, entries, COALESCE(error, ''), started_at, finished_at
		FROM catalog_loads
		WHERE identity = $1
		ORDER BY started_at DESC
		LIMIT $2`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, identity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []LoadRun
	for rows.Next() {
		var (
			run    LoadRun
			seq    int64
			status string
		)
		if err := rows.Scan(&run.ID, &run.Identity, &seq, &status, &run.Entries, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Seq = uint64(seq)
		run.Status = RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
