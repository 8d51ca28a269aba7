package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"procure/db"
	"procure/db/migrations"
	"procure/internal/config"
	"procure/internal/handlers"
	"procure/internal/logger"
	"procure/internal/metrics"
	"procure/internal/rolesession"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	lg := logger.New(cfg.LogLevel)

	store, closeStore, err := openStore(cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	sessions := rolesession.New(store, cfg.RoleSessionTTL, lg, m)
	go sessions.Run(ctx, cfg.RoleSessionSweep)

	h := handlers.NewHandler(store, sessions, m, lg, handlers.Fees{
		BidServicePercent: cfg.BidServiceFeePercent,
		Reveal:            cfg.RevealFee,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handlers.NewRouter(h, cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server.start", "addr", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		lg.Info("server.stop", "reason", "signal")
	case err := <-errCh:
		lg.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server.shutdown.fail", "err", err)
		return err
	}
	lg.Info("server.stopped")
	return nil
}

// openStore подключается к Postgres, если задан POSTGRES_CONN, иначе
// использует хранилище в памяти.
func openStore(cfg config.Config, lg *slog.Logger) (handlers.StorageInterface, func(), error) {
	if cfg.PostgresConn == "" {
		lg.Warn("store.memory", "reason", "POSTGRES_CONN is not set; data is not persisted")
		return db.NewMemoryStorage(), func() {}, nil
	}

	dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RunMigrations {
		if err := migrations.Run(dbConn.DB, lg); err != nil {
			dbConn.Close()
			return nil, nil, err
		}
	}
	lg.Info("store.postgres", "migrations", cfg.RunMigrations)
	return db.NewStorage(dbConn), func() { dbConn.Close() }, nil
}
