package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/middleware"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/pdf"
	"github.com/sunforge/solar-epc/internal/services"
	"github.com/sunforge/solar-epc/internal/store"
	"gorm.io/gorm"
)

type QuotationHandler struct {
	db      *gorm.DB
	svc     *services.QuotationService
	pdf     pdf.Generator
	metrics *middleware.Metrics
}

func NewQuotationHandler(db *gorm.DB, svc *services.QuotationService, gen pdf.Generator, m *middleware.Metrics) *QuotationHandler {
	return &QuotationHandler{db: db, svc: svc, pdf: gen, metrics: m}
}

// List answers GET /api/quotations?clientId=&status=&page=&perPage=.
func (h *QuotationHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := queryID(r, "clientId")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", map[string]string{"param": "clientId"})
		return
	}
	f := services.QuotationFilter{
		ClientID: clientID,
		Status:   r.URL.Query().Get("status"),
		Page:     services.Page{Number: queryInt(r, "page"), PerPage: queryInt(r, "perPage")}.Normalize(),
	}
	out, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []models.Quotation{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[models.Quotation]{Items: out, Total: total, Page: f.Page.Number, PerPage: f.Page.PerPage})
}

func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.QuotationInput
	if !decode(w, r, &in) {
		return
	}
	q, err := h.svc.Create(r.Context(), in, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *QuotationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// AddVersion answers POST /api/quotations/{id}/versions.
func (h *QuotationHandler) AddVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.VersionInput
	if !decode(w, r, &in) {
		return
	}
	v, err := h.svc.AddVersion(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

type statusInput struct {
	Status string `json:"status"`
}

// UpdateStatus answers PUT /api/quotations/{id}/status.
func (h *QuotationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in statusInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.UpdateStatus(r.Context(), id, in.Status); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.OK(w)
}

// Totals answers GET /api/quotations/{id}/totals?version=n (latest when absent).
func (h *QuotationHandler) Totals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.ComputeTotals(q, queryInt(r, "version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

// PDF answers GET /api/quotations/{id}/pdf?version=n (latest when absent).
func (h *QuotationHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := q.Latest()
	if n := queryInt(r, "version"); n > 0 {
		v = q.Version(n)
	}
	if v == nil {
		writeError(w, r, store.ErrNotFound)
		return
	}
	company, err := LoadCompany(h.db.WithContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := h.pdf.Quotation(company, q, v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="quotation-%d-v%d.pdf"`, q.ID, v.VersionNumber))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Delete answers DELETE /api/quotations/{id}, removing the quotation with all
// its versions and items in one transaction.
func (h *QuotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.svc.Delete(r.Context(), id)
	h.metrics.QuotationDeleted(deleteOutcome(err))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.OK(w)
}

func deleteOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConstraint):
		return "constraint"
	case errors.Is(err, store.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
