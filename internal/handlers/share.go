package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/middleware"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/services"
)

// ShareHandler serves a client's documents to holders of a share token.
// No session is involved; every request resolves the token again, so expiry
// and revocation take effect immediately.
type ShareHandler struct {
	tokens  *services.TokenService
	docs    *services.DocumentService
	metrics *middleware.Metrics
}

func NewShareHandler(tokens *services.TokenService, docs *services.DocumentService, m *middleware.Metrics) *ShareHandler {
	return &ShareHandler{tokens: tokens, docs: docs, metrics: m}
}

type shareView struct {
	Client        shareClient       `json:"client"`
	Inquiry       *shareInquiry     `json:"inquiry,omitempty"`
	AllowDownload bool              `json:"allowDownload"`
	ExpiresAt     *time.Time        `json:"expiresAt"`
	Documents     []models.Document `json:"documents"`
}

// shareClient and shareInquiry limit what an external holder sees.
type shareClient struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type shareInquiry struct {
	ID          uint    `json:"id"`
	SiteAddress string  `json:"siteAddress,omitempty"`
	CapacityKW  float64 `json:"capacityKw"`
	SystemType  string  `json:"systemType"`
}

// resolve answers the request itself and returns nil when the token grants nothing.
func (h *ShareHandler) resolve(w http.ResponseWriter, r *http.Request) *services.Grant {
	g, err := h.tokens.Resolve(r.Context(), chi.URLParam(r, "token"))
	switch {
	case err == nil:
		h.metrics.ShareResolved("ok")
		return g
	case errors.Is(err, services.ErrTokenExpired):
		h.metrics.ShareResolved("expired")
		httpx.JSONError(w, http.StatusNotFound, "invalid_token", nil)
	case errors.Is(err, services.ErrTokenInvalid):
		h.metrics.ShareResolved("invalid")
		httpx.JSONError(w, http.StatusNotFound, "invalid_token", nil)
	default:
		h.metrics.ShareResolved("error")
		writeError(w, r, err)
	}
	return nil
}

// Show answers GET /share/{token}.
func (h *ShareHandler) Show(w http.ResponseWriter, r *http.Request) {
	g := h.resolve(w, r)
	if g == nil {
		return
	}
	docs, err := h.docs.ListShared(r.Context(), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	out := shareView{
		Client:        shareClient{ID: g.ClientID},
		AllowDownload: g.AllowDownload,
		ExpiresAt:     g.ExpiresAt,
		Documents:     docs,
	}
	if g.Client != nil {
		out.Client.Name = g.Client.DisplayName()
	}
	if g.Inquiry != nil {
		out.Inquiry = &shareInquiry{
			ID:          g.Inquiry.ID,
			SiteAddress: g.Inquiry.SiteAddress,
			CapacityKW:  g.Inquiry.CapacityKW,
			SystemType:  string(g.Inquiry.SystemType),
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Document answers GET /share/{token}/documents/{id}. Content is served inline;
// ?download=1 asks for an attachment and needs a download-enabled token.
func (h *ShareHandler) Document(w http.ResponseWriter, r *http.Request) {
	g := h.resolve(w, r)
	if g == nil {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	intent := services.IntentView
	if d := r.URL.Query().Get("download"); d == "1" || d == "true" {
		intent = services.IntentDownload
	}
	if !g.Permits(intent) {
		httpx.JSONError(w, http.StatusForbidden, "download_not_allowed", nil)
		return
	}
	doc, f, err := h.docs.OpenShared(r.Context(), g, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	serveDocument(w, r, doc, f, intent == services.IntentDownload)
}
