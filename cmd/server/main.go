package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sunforge/solar-epc/internal/config"
	"github.com/sunforge/solar-epc/internal/db"
	"github.com/sunforge/solar-epc/internal/store"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	cfg.Database.DSN = db.NormalizeDSN(cfg.Database.DSN)
	logger := newLogger(cfg.App.Dev)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer st.Close()

	if *migrateOnlyFlag {
		if err := runMigrations(cfg, st); err != nil {
			fatal("migration failed", err)
		}
		slog.Info("migrations completed")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(st.DB(), seedOptions(cfg)); err != nil {
			fatal("seeding failed", err)
		}
		slog.Info("seeding completed")
		return
	}

	if err := runMigrations(cfg, st); err != nil {
		fatal("migration failed", err)
	}
	if cfg.App.Seed {
		if err := db.Seed(st.DB(), seedOptions(cfg)); err != nil {
			fatal("seeding failed", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, st, logger)
	go app.pruneLimiter(ctx, time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev, "driver", st.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "err", err)
	}
	slog.Info("server stopped")
}

// runMigrations applies the schema according to MIGRATIONS (auto, sql or off).
func runMigrations(cfg *config.Config, st *store.Store) error {
	switch cfg.App.Migrations {
	case "auto":
		return db.Migrate(st.DB())
	case "sql":
		return db.RunSQLMigrations(db.MigrationsSource, db.ToURLDSN(cfg.Database.ConnString()))
	default:
		slog.Info("migrations disabled")
		return db.CheckTables(st.DB())
	}
}

func seedOptions(cfg *config.Config) db.SeedOptions {
	return db.SeedOptions{AdminEmail: cfg.App.AdminEmail, AdminPassword: cfg.App.AdminPassword}
}

func newLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
