// Package server assembles the HTTP routes.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/handlers"
	"github.com/sunforge/solar-epc/internal/middleware"
	"github.com/sunforge/solar-epc/internal/pdf"
	"github.com/sunforge/solar-epc/internal/policy"
	"github.com/sunforge/solar-epc/internal/services"
	"gorm.io/gorm"
)

// profileCacheTTL bounds how long a permission change can take to apply
// when it bypasses the admin endpoints.
const profileCacheTTL = 5 * time.Minute

// Options carries the dependencies opened by main.
type Options struct {
	DB       *gorm.DB
	Store    handlers.Pinger
	Sessions *auth.Sessions
	Logger   *slog.Logger
	Metrics  *middleware.Metrics
	Limiter  *middleware.LimiterRegistry

	UploadDir      string
	MaxUploadBytes int64

	// Tokens overrides the share token service, e.g. with a fixed clock in tests.
	Tokens *services.TokenService
}

// New constructs the root handler with every route and middleware applied.
func New(o Options) http.Handler {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tokens == nil {
		o.Tokens = services.NewTokenService(o.DB)
	}
	if o.Sessions == nil {
		o.Sessions = auth.NewSessions("")
	}
	if !o.Sessions.HasVerifier() {
		// Deactivated or deleted users lose access on their next request.
		o.Sessions = o.Sessions.With(auth.WithVerifier(handlers.ActiveUser(o.DB)))
	}

	gate := policy.NewGate(o.DB, profileCacheTTL)
	gate.Register("task", policy.NewAssigneePolicy(gate.Resolver(), policy.NewPermission("task", policy.Wildcard)))

	quotations := services.NewQuotationService(o.DB)
	documents := services.NewDocumentService(o.DB, o.UploadDir, o.MaxUploadBytes)
	tasks := services.NewTaskService(o.DB)

	authH := handlers.NewAuthHandler(o.DB, o.Sessions)
	clientH := handlers.NewClientHandler(o.DB)
	inquiryH := handlers.NewInquiryHandler(o.DB)
	itemH := handlers.NewItemHandler(o.DB)
	companyH := handlers.NewCompanyHandler(o.DB)
	quotationH := handlers.NewQuotationHandler(o.DB, quotations, pdf.New(), o.Metrics)
	tokenH := handlers.NewTokenHandler(o.Tokens)
	documentH := handlers.NewDocumentHandler(documents, o.MaxUploadBytes)
	shareH := handlers.NewShareHandler(o.Tokens, documents, o.Metrics)
	taskH := handlers.NewTaskHandler(tasks, gate)
	profileH := handlers.NewAdminProfileHandler(o.DB, gate.Resolver())
	userH := handlers.NewAdminUserHandler(o.DB, gate.Resolver())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(o.Logger))
	r.Use(middleware.Recoverer(o.Logger))
	r.Use(o.Metrics.Instrument)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	r.Get("/health", handlers.Health)
	if o.Store != nil {
		r.Get("/healthz", handlers.Ready(o.Store))
	}
	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics.Handler())
	}
	r.Post("/login", authH.Login)
	r.Post("/logout", authH.Logout)

	r.Route("/share/{token}", func(r chi.Router) {
		if o.Limiter != nil {
			r.Use(o.Limiter.RateLimit)
		}
		r.Use(chimw.NoCache)
		r.Get("/", shareH.Show)
		r.Get("/documents/{id}", shareH.Document)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(o.Sessions.Middleware)
		r.Use(o.Sessions.RequireAuth)
		can := gate.RequirePermission

		r.Get("/me", authH.Me)

		r.Route("/clients", func(r chi.Router) {
			r.With(can("client", policy.ActionList)).Get("/", clientH.List)
			r.With(can("client", policy.ActionCreate)).Post("/", clientH.Create)
			r.With(can("client", policy.ActionView)).Get("/{id}", clientH.Get)
			r.With(can("client", policy.ActionUpdate)).Put("/{id}", clientH.Update)
			r.With(can("client", policy.ActionDelete)).Delete("/{id}", clientH.Delete)
		})

		r.Route("/inquiries", func(r chi.Router) {
			r.With(can("inquiry", policy.ActionList)).Get("/", inquiryH.List)
			r.With(can("inquiry", policy.ActionCreate)).Post("/", inquiryH.Create)
			r.With(can("inquiry", policy.ActionView)).Get("/{id}", inquiryH.Get)
			r.With(can("inquiry", policy.ActionUpdate)).Put("/{id}", inquiryH.Update)
			r.With(can("inquiry", policy.ActionUpdate)).Put("/{id}/status", inquiryH.SetStatus)
			r.With(can("inquiry", policy.ActionDelete)).Delete("/{id}", inquiryH.Delete)
		})

		r.Route("/items", func(r chi.Router) {
			r.With(can("item", policy.ActionList)).Get("/", itemH.List)
			r.With(can("item", policy.ActionCreate)).Post("/", itemH.Create)
			r.With(can("item", policy.ActionView)).Get("/{id}", itemH.Get)
			r.With(can("item", policy.ActionUpdate)).Put("/{id}", itemH.Update)
			r.With(can("item", policy.ActionDelete)).Delete("/{id}", itemH.Delete)
		})

		r.Route("/quotations", func(r chi.Router) {
			r.With(can("quotation", policy.ActionList)).Get("/", quotationH.List)
			r.With(can("quotation", policy.ActionCreate)).Post("/", quotationH.Create)
			r.With(can("quotation", policy.ActionView)).Get("/{id}", quotationH.Get)
			r.With(can("quotation", policy.ActionView)).Get("/{id}/totals", quotationH.Totals)
			r.With(can("quotation", policy.ActionView)).Get("/{id}/pdf", quotationH.PDF)
			r.With(can("quotation", policy.ActionUpdate)).Post("/{id}/versions", quotationH.AddVersion)
			r.With(can("quotation", policy.ActionUpdate)).Put("/{id}/status", quotationH.UpdateStatus)
			r.With(can("quotation", policy.ActionDelete)).Delete("/{id}", quotationH.Delete)
		})

		r.Route("/documents", func(r chi.Router) {
			r.With(can("document", policy.ActionList)).Get("/", documentH.List)
			r.With(can("document", policy.ActionCreate)).Post("/", documentH.Upload)
			r.With(can("document", policy.ActionView)).Get("/{id}/file", documentH.Download)
			r.With(can("document", policy.ActionDelete)).Delete("/{id}", documentH.Delete)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/mine", taskH.Mine)
			r.With(can("task", policy.ActionList)).Get("/", taskH.List)
			r.With(can("task", policy.ActionCreate)).Post("/", taskH.Create)
			r.With(can("task", policy.ActionView)).Get("/{id}", taskH.Get)
			r.With(can("task", policy.ActionUpdate)).Put("/{id}", taskH.Update)
			r.With(can("task", policy.ActionUpdate)).Put("/{id}/assignee", taskH.Assign)
			r.With(can("task", policy.ActionUpdate)).Put("/{id}/status", taskH.SetStatus)
			r.With(can("task", policy.ActionDelete)).Delete("/{id}", taskH.Delete)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.With(can("token", policy.ActionList)).Get("/", tokenH.List)
			r.With(can("token", policy.ActionCreate)).Post("/", tokenH.Create)
			r.With(can("token", policy.ActionView)).Get("/{id}", tokenH.Get)
			r.With(can("token", policy.ActionUpdate)).Put("/{id}", tokenH.Update)
			r.With(can("token", policy.ActionDelete)).Delete("/{id}", tokenH.Revoke)
		})

		r.With(can("company", policy.ActionView)).Get("/company", companyH.Get)
		r.With(can("company", policy.ActionUpdate)).Put("/company", companyH.Update)

		r.Route("/admin", func(r chi.Router) {
			r.Use(gate.RequireAdmin())
			r.Get("/users", userH.List)
			r.Post("/users", userH.Create)
			r.Put("/users/{id}", userH.Update)
			r.Get("/profiles", profileH.List)
			r.Post("/profiles", profileH.Create)
			r.Get("/permissions", profileH.Permissions)
			r.Put("/profiles/{id}/permissions", profileH.SetPermissions)
			r.Delete("/profiles/{id}", profileH.Delete)
		})
	})

	return r
}
