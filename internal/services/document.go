package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = errors.New("file exceeds upload limit")

// UploadInput describes an incoming document. The content is passed separately.
// The media type is sniffed from the content; whatever the uploader declared is ignored.
type UploadInput struct {
	ClientID     uint
	InquiryID    *uint
	Category     string
	OriginalName string
	UploadedByID *uint
}

// sniffLen is how much content http.DetectContentType looks at.
const sniffLen = 512

// inlineTypes may be rendered by a browser on our origin. Anything else is served as an attachment.
var inlineTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"text/plain":      true,
}

// InlineSafe reports whether a stored media type may be served with an inline disposition.
func InlineSafe(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return inlineTypes[strings.ToLower(strings.TrimSpace(base))]
}

func (in UploadInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.RequiredID("clientId", in.ClientID, v)
	validation.Required("file", in.OriginalName, v)
	validation.MaxLen("file", in.OriginalName, 255, v)
	validation.OneOf("category", in.Category, models.DocumentCategories, v)
	return v
}

// DocumentFilter scopes document listings.
type DocumentFilter struct {
	ClientID  *uint
	InquiryID *uint
}

// DocumentService stores client documents on local disk under random file names
// and keeps their metadata in the store.
type DocumentService struct {
	db       *gorm.DB
	dir      string
	maxBytes int64
}

func NewDocumentService(db *gorm.DB, dir string, maxBytes int64) *DocumentService {
	return &DocumentService{db: db, dir: dir, maxBytes: maxBytes}
}

// Upload streams content to disk and records the document. The file is removed again
// when the row cannot be written.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput, content io.Reader) (*models.Document, error) {
	in.OriginalName = filepath.Base(strings.TrimSpace(in.OriginalName))
	if in.OriginalName == "." || in.OriginalName == string(filepath.Separator) {
		in.OriginalName = ""
	}
	if in.Category == "" {
		in.Category = string(models.DocOther)
	}
	v := in.Validate()
	if v.Empty() {
		if err := checkClientScope(ctx, s.db, in.ClientID, in.InquiryID, v); err != nil {
			return nil, err
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	head := make([]byte, sniffLen)
	hn, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:hn]
	mimeType := http.DetectContentType(head)
	content = io.MultiReader(bytes.NewReader(head), content)

	stored := uuid.NewString() + storedExt(in.OriginalName)
	path := filepath.Join(s.dir, stored)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(content, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		s.removeFile(stored)
		return nil, err
	}

	doc := models.Document{
		ClientID:     in.ClientID,
		InquiryID:    in.InquiryID,
		Category:     models.DocumentCategory(in.Category),
		OriginalName: in.OriginalName,
		StoredName:   stored,
		MimeType:     mimeType,
		Size:         n,
		UploadedByID: in.UploadedByID,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		s.removeFile(stored)
		return nil, store.Classify(err)
	}
	return &doc, nil
}

// storedExt keeps a short, lower-case extension so served files get a sensible type.
func storedExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, f DocumentFilter) ([]models.Document, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.InquiryID != nil {
		q = q.Where("inquiry_id = ?", *f.InquiryID)
	}
	var docs []models.Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, store.Classify(err)
	}
	return docs, nil
}

// Get loads document metadata.
func (s *DocumentService) Get(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, store.Classify(err)
	}
	return &doc, nil
}

// Open returns the document and its content. The caller closes the file.
func (s *DocumentService) Open(ctx context.Context, id uint) (*models.Document, *os.File, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, doc.StoredName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("document %d content: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, f, nil
}

// Delete removes the row, then the file.
func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Document{}, doc.ID).Error; err != nil {
		return store.Classify(err)
	}
	s.removeFile(doc.StoredName)
	return nil
}

// ListShared returns the documents visible through a share grant.
func (s *DocumentService) ListShared(ctx context.Context, g *Grant) ([]models.Document, error) {
	if g == nil {
		return nil, ErrTokenInvalid
	}
	return s.List(ctx, DocumentFilter{ClientID: &g.ClientID, InquiryID: g.InquiryID})
}

// OpenShared opens a document through a share grant. Documents outside the grant's
// scope are reported as not found.
func (s *DocumentService) OpenShared(ctx context.Context, g *Grant, id uint) (*models.Document, *os.File, error) {
	if g == nil {
		return nil, nil, ErrTokenInvalid
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !g.Covers(doc) {
		return nil, nil, fmt.Errorf("document %d: %w", id, store.ErrNotFound)
	}
	return s.Open(ctx, id)
}

func (s *DocumentService) removeFile(stored string) {
	err := os.Remove(filepath.Join(s.dir, stored))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("remove stored document", "file", stored, "err", err)
	}
}
