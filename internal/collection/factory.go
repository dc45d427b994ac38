package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	EnginePostgres  = "postgres"
	EngineFirestore = "firestore"
	EngineSQLite    = "sqlite"
	EngineMemory    = "memory"
)

type StoreConfig struct {
	Engine              string
	Pool                *pgxpool.Pool
	Timeout             time.Duration
	SQLitePath          string
	FirestoreProjectID  string
	FirestoreCollection string
}

// NewByEngine opens the repository selected by cfg.Engine. The returned close
// func releases engine-owned resources; the Postgres pool is owned by the caller.
func NewByEngine(ctx context.Context, cfg StoreConfig) (Repository, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EnginePostgres:
		if cfg.Pool == nil {
			return nil, nil, errors.New("postgres collection store requires a database pool")
		}
		return NewPostgresRepo(cfg.Pool, cfg.Timeout), noop, nil
	case EngineSQLite:
		repo, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return repo, repo.Close, nil
	case EngineFirestore:
		if cfg.FirestoreProjectID == "" {
			return nil, nil, errors.New("FIRESTORE_PROJECT_ID is required for the firestore store")
		}
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("open firestore client: %w", err)
		}
		return NewFirestoreRepo(client, cfg.FirestoreCollection, cfg.Timeout), client.Close, nil
	case EngineMemory:
		repo, err := NewMemoryRepo()
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil
	default:
		return nil, nil, errors.New("unsupported collection store engine: " + cfg.Engine)
	}
}
