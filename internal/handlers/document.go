package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/services"
)

// multipartMemory is kept in memory while parsing uploads; larger parts spill to temp files.
const multipartMemory = 8 << 20

type DocumentHandler struct {
	svc      *services.DocumentService
	maxBytes int64
}

func NewDocumentHandler(svc *services.DocumentService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxBytes}
}

// List answers GET /api/documents?clientId=&inquiryId=.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok1 := queryID(r, "clientId")
	inquiryID, ok2 := queryID(r, "inquiryId")
	if !ok1 || !ok2 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	docs, err := h.svc.List(r.Context(), services.DocumentFilter{ClientID: clientID, InquiryID: inquiryID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	httpx.JSON(w, http.StatusOK, docs)
}

// Upload answers POST /api/documents (multipart: file, clientId, inquiryId?, category?).
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httpx.JSONError(w, http.StatusRequestEntityTooLarge, "file_too_large", nil)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"file": "required"})
		return
	}
	defer file.Close()

	in := services.UploadInput{
		Category:     r.FormValue("category"),
		OriginalName: header.Filename,
		UploadedByID: currentUser(r),
	}
	if v, err := strconv.ParseUint(r.FormValue("clientId"), 10, 64); err == nil {
		in.ClientID = uint(v)
	}
	if raw := r.FormValue("inquiryId"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"inquiryId": "invalid"})
			return
		}
		id := uint(v)
		in.InquiryID = &id
	}

	doc, err := h.svc.Upload(r.Context(), in, file)
	if errors.Is(err, services.ErrFileTooLarge) {
		httpx.JSONError(w, http.StatusRequestEntityTooLarge, "file_too_large", nil)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

// Download answers GET /api/documents/{id}/file. Operators always get an attachment.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	doc, f, err := h.svc.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	serveDocument(w, r, doc, f, true)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.OK(w)
}

// serveDocument streams stored content with its original name. Types a browser could
// execute are always sent as attachments.
func serveDocument(w http.ResponseWriter, r *http.Request, doc *models.Document, f *os.File, attachment bool) {
	disposition := "inline"
	if attachment || !services.InlineSafe(doc.MimeType) {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.OriginalName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "application/octet-stream")
	if doc.MimeType != "" {
		w.Header().Set("Content-Type", doc.MimeType)
	}
	info, err := f.Stat()
	if err != nil {
		writeError(w, r, fmt.Errorf("stat document %d: %w", doc.ID, err))
		return
	}
	http.ServeContent(w, r, doc.OriginalName, info.ModTime(), f)
}
