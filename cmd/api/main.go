package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pokedex/internal/auth"
	"pokedex/internal/collection"
	"pokedex/internal/httpx"
	"pokedex/internal/platform/pokeapi"
	"pokedex/internal/pokedex"
	"pokedex/internal/pokemon"
	"pokedex/internal/session"
	"pokedex/internal/user"
)

func main() {
	cfg := LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool := mustOpenDB(cfg.DSN)
	defer dbPool.Close()

	userService := user.NewService(user.NewPostgresRepo(dbPool, cfg.DBTimeout))
	sessionService := session.NewService(
		session.NewPostgresRepo(dbPool, cfg.DBTimeout),
		session.NewBlacklistPostgresRepo(dbPool, cfg.DBTimeout),
	)
	authService := auth.NewService(cfg.JWTSecret, userService, sessionService)

	recordRepo, closeRecords, err := collection.NewByEngine(ctx, collection.StoreConfig{
		Engine:              cfg.CollectionStore,
		Pool:                dbPool,
		Timeout:             cfg.DBTimeout,
		SQLitePath:          cfg.SQLitePath,
		FirestoreProjectID:  cfg.FirestoreProjectID,
		FirestoreCollection: cfg.FirestoreCollection,
	})
	if err != nil {
		log.Fatalf("cannot open collection store: %v", err)
	}
	defer func() {
		if err := closeRecords(); err != nil {
			log.Printf("collection store close failed error=%v", err)
		}
	}()
	log.Printf("collection store engine=%s", cfg.CollectionStore)

	runRepo := pokemon.NewPostgresRepo(dbPool, cfg.DBTimeout)
	loader := pokemon.NewLoader(
		pokeapi.NewClient(cfg.PokeAPIBaseURL, cfg.PokeAPIUserAgent, cfg.PokeAPIRPS),
		cfg.PokeAPIMaxConcurrency,
	)
	manager := pokedex.NewManager(loader, collection.NewService(recordRepo), runRepo)
	defer manager.Close()

	unsubscribe := authService.Subscribe(manager.OnIdentityEvent)
	defer unsubscribe()

	go sessionService.RunCleanup(ctx, time.Hour)
	go manager.RunEviction(ctx, 5*time.Minute, cfg.SessionIdleTimeout)
	go func() {
		// anonymous catalog, so the first visitor does not wait
		if _, err := manager.Get(ctx, ""); err != nil {
			log.Printf("catalog warmup aborted error=%v", err)
		}
	}()

	router := newRouter(handlers{
		auth:     auth.NewHTTPHandler(authService),
		users:    user.NewHTTPHandler(userService),
		sessions: session.NewHTTPHandler(sessionService),
		pokedex:  pokedex.NewHTTPHandler(manager),
		loads:    pokemon.NewHTTPHandler(runRepo),
	}, cfg.JWTSecret, sessionService, func(ctx context.Context) error {
		return dbPool.Ping(ctx)
	})
	limiter := httpx.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withMiddleware(router, cfg, limiter),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server stopped")
}

func mustOpenDB(dsn string) *pgxpool.Pool {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("cannot create db pool: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Fatalf("cannot ping database (%s): %v", redactDSN(dsn), err)
	}
	log.Println("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
