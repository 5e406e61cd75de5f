package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/services"
	"github.com/sunforge/solar-epc/validation"
)

// TokenHandler is the operator side of share tokens.
type TokenHandler struct {
	svc *services.TokenService
}

func NewTokenHandler(svc *services.TokenService) *TokenHandler {
	return &TokenHandler{svc: svc}
}

// List answers GET /api/tokens?clientId=.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := queryID(r, "clientId")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", map[string]string{"param": "clientId"})
		return
	}
	rows, err := h.svc.List(r.Context(), clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.TokenAccess{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

// Create answers POST /api/tokens with {clientId, inquiryId?, allowDownload?, expiresAt?}.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.TokenInput
	if !decode(w, r, &in) {
		return
	}
	row, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, row)
}

// tokenUpdateInput remembers which keys were present so that a PUT cannot widen a
// token's scope or drop its expiry by leaving a field out.
type tokenUpdateInput struct {
	services.TokenInput
	present map[string]bool
}

func (in *tokenUpdateInput) UnmarshalJSON(b []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	in.present = make(map[string]bool, len(keys))
	for k := range keys {
		in.present[k] = true
	}
	type plain services.TokenInput
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode((*plain)(&in.TokenInput))
}

// Validate requires inquiryId and expiresAt to be sent, null being the explicit
// way to cover the whole client or to never expire.
func (in tokenUpdateInput) Validate() validation.Violations {
	v := in.TokenInput.Validate()
	for _, key := range []string{"inquiryId", "expiresAt"} {
		if !in.present[key] {
			v[key] = "required"
		}
	}
	return v
}

// Update answers PUT /api/tokens/{id} with {clientId, inquiryId, allowDownload?, expiresAt}.
// inquiryId and expiresAt must be present; null clears them. An expired token answers
// 409 token_expired and a new one has to be issued. The token string itself cannot be changed.
func (h *TokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in tokenUpdateInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate().Err(); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.svc.Update(r.Context(), id, in.TokenInput)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

// Revoke answers DELETE /api/tokens/{id}.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Revoke(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.OK(w)
}
