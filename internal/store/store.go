// Package store owns the relational store handle: it is opened once at process start,
// injected into services and handlers, and closed at shutdown.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/sunforge/solar-epc/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM handle and its underlying connection pool.
type Store struct {
	db     *gorm.DB
	driver string
}

// Open connects to the configured database, retrying while it comes up, and pings it.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	attempts := cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	var db *gorm.DB
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		slog.Warn("database connection failed, retrying", "attempt", i+1, "of", attempts, "err", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connect after %d attempts: %v", ErrUnavailable, attempts, err)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if cfg.Driver == "sqlite" {
		// A single connection keeps sqlite writers serialized.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	slog.Info("database connected", "driver", cfg.Driver, "dsn", MaskDSN(cfg.ConnString()))
	return s, nil
}

// New wraps an already opened GORM handle. Tests use it with in-memory sqlite.
func New(db *gorm.DB) *Store {
	return &Store{db: db, driver: db.Dialector.Name()}
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.ConnString()), nil
	case "sqlite":
		return sqlite.Open(cfg.ConnString()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// DB returns the GORM handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Driver returns the configured driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks connectivity with a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var passwordKV = regexp.MustCompile(`(password=)([^\s]+)`)
var passwordURL = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)

// MaskDSN hides the password in key=value and URL style connection strings.
func MaskDSN(dsn string) string {
	dsn = passwordKV.ReplaceAllString(dsn, `${1}***`)
	return passwordURL.ReplaceAllString(dsn, `${1}***${3}`)
}
