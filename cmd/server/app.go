package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/internal/config"
	"github.com/sunforge/solar-epc/internal/handlers"
	"github.com/sunforge/solar-epc/internal/middleware"
	"github.com/sunforge/solar-epc/internal/server"
	"github.com/sunforge/solar-epc/internal/store"
)

// devSessionSecret signs cookies when DEV=1 and no SESSION_SECRET is set.
const devSessionSecret = "dev-only-session-secret"

// App holds the long-lived components shared by every request.
type App struct {
	handler http.Handler
	limiter *middleware.LimiterRegistry
	logger  *slog.Logger
}

// NewApp wires sessions, metrics, the share limiter and the router.
func NewApp(cfg *config.Config, st *store.Store, logger *slog.Logger) *App {
	secret := cfg.App.SessionSecret
	if secret == "" {
		logger.Warn("SESSION_SECRET not set, using the development secret")
		secret = devSessionSecret
	}
	sessions := auth.NewSessions(secret,
		auth.WithSecureCookie(!cfg.App.Dev),
		auth.WithVerifier(handlers.ActiveUser(st.DB())),
	)
	limiter := middleware.NewLimiterRegistry(cfg.Share.RatePerSecond, cfg.Share.Burst)

	h := server.New(server.Options{
		DB:             st.DB(),
		Store:          st,
		Sessions:       sessions,
		Logger:         logger,
		Metrics:        middleware.NewMetrics(),
		Limiter:        limiter,
		UploadDir:      cfg.Storage.UploadDir,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
	})
	return &App{handler: h, limiter: limiter, logger: logger}
}

func (a *App) Handler() http.Handler { return a.handler }

// pruneLimiter drops per-IP limiters that have been idle for ten minutes until ctx ends.
func (a *App) pruneLimiter(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Prune(10 * time.Minute); n > 0 {
				a.logger.Debug("pruned share limiters", "count", n, "remaining", a.limiter.Len())
			}
		}
	}
}
