package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRepo stores records in a single-file database for local runs.
type SQLiteRepo struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", filepath.Clean(dbPath))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS collection_records (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			name       TEXT NOT NULL,
			types      TEXT NOT NULL,
			abilities  TEXT NOT NULL,
			image      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_collection_user_name
			ON collection_records (user_id, name);
	`)
	return err
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) Insert(ctx context.Context, rec *Record) error {
	types, err := json.Marshal(rec.Types)
	if err != nil {
		return err
	}
	abilities, err := json.Marshal(rec.Abilities)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO collection_records (id, user_id, name, types, abilities, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.User, rec.Name, string(types), string(abilities), rec.Image, toTS(rec.CreatedAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyOwned
	}
	rec.ID = id
	return nil
}

func (r *SQLiteRepo) FindByNameAndUser(ctx context.Context, name, user string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, user_id, types, abilities, image, created_at
		FROM collection_records
		WHERE name = ? AND user_id = ?`,
		name, user,
	)
	if err != nil {
		return nil, err
	}
	return scanSQLiteRecords(rows)
}

func (r *SQLiteRepo) ListByUser(ctx context.Context, user string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, user_id, types, abilities, image, created_at
		FROM collection_records
		WHERE user_id = ?
		ORDER BY created_at ASC, name ASC`,
		user,
	)
	if err != nil {
		return nil, err
	}
	return scanSQLiteRecords(rows)
}

func (r *SQLiteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collection_records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSQLiteRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var (
			rec                  Record
			types, abilities, ts string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.User, &types, &abilities, &rec.Image, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(types), &rec.Types); err != nil {
			return nil, fmt.Errorf("decode types: %w", err)
		}
		if err := json.Unmarshal([]byte(abilities), &rec.Abilities); err != nil {
			return nil, fmt.Errorf("decode abilities: %w", err)
		}
		rec.CreatedAt = fromTS(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

// Fixed-width so created_at sorts as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func toTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func fromTS(v string) time.Time {
	t, err := time.Parse(tsLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
