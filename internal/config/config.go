// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Storage  StorageConfig
	Share    ShareConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds store connection settings.
// Driver is "postgres" (default) or "sqlite"; for sqlite, Name is the database file.
type DatabaseConfig struct {
	Driver   string
	DSN      string // explicit override, takes precedence over the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Retries  int
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool
	Migrations    string // auto | sql | off
	Seed          bool
	SessionSecret string
	AdminEmail    string
	AdminPassword string
}

// StorageConfig controls where uploaded client documents live.
type StorageConfig struct {
	UploadDir   string
	MaxUploadMB int
}

// ShareConfig limits traffic on the public share-token routes.
type ShareConfig struct {
	RatePerSecond float64
	Burst         int
}

// ConnString returns the connection string for the configured driver.
// Postgres uses the key=value format accepted by both pgx and lib/pq.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "sqlite" {
		return d.Name
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// MaxUploadBytes converts the configured megabyte limit to bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:      os.Getenv("DATABASE_DSN"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "solar"),
			Password: getEnv("DB_PASSWORD", "solar123"),
			Name:     getEnv("DB_NAME", "solar_epc"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Retries:  getEnvInt("DB_CONNECT_RETRIES", 10),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", false),
			Migrations:    strings.ToLower(getEnv("MIGRATIONS", "auto")),
			Seed:          getEnvBool("DB_SEED", true),
			SessionSecret: os.Getenv("SESSION_SECRET"),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 25),
		},
		Share: ShareConfig{
			RatePerSecond: getEnvFloat("SHARE_RATE_PER_SEC", 2),
			Burst:         getEnvInt("SHARE_BURST", 10),
		},
	}
}

// Validate reports configuration combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want postgres or sqlite", c.Database.Driver))
	}
	switch c.App.Migrations {
	case "auto", "sql", "off":
	default:
		errs = append(errs, fmt.Errorf("MIGRATIONS %q: want auto, sql or off", c.App.Migrations))
	}
	if c.App.Migrations == "sql" && c.Database.Driver != "postgres" {
		errs = append(errs, errors.New("MIGRATIONS=sql requires DB_DRIVER=postgres"))
	}
	if c.App.SessionSecret == "" && !c.App.Dev {
		errs = append(errs, errors.New("SESSION_SECRET is required outside dev mode"))
	}
	if c.Storage.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.Share.RatePerSecond <= 0 || c.Share.Burst <= 0 {
		errs = append(errs, errors.New("SHARE_RATE_PER_SEC and SHARE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
