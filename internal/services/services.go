// Package services holds the business operations behind the HTTP handlers.
// Every service receives its *gorm.DB from the store opened in main; errors leaving
// a service are classified with store.Classify or carry a *validation.Error.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// Page bounds list queries.
type Page struct {
	Number  int
	PerPage int
}

const maxPerPage = 100

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return q.Limit(p.PerPage).Offset((p.Number - 1) * p.PerPage)
}

// Timestamp decodes ISO-8601 instants as well as plain dates ("2026-05-31", taken as UTC midnight).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp %q is not ISO-8601", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// ptrTime converts an optional Timestamp to an optional time.Time.
func ptrTime(t *Timestamp) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

// checkClientScope verifies that the client exists and, when inquiryID is set, that the
// inquiry belongs to that client. Problems are reported as field violations.
func checkClientScope(ctx context.Context, db *gorm.DB, clientID uint, inquiryID *uint, v validation.Violations) error {
	var client models.Client
	err := db.WithContext(ctx).Select("id").First(&client, clientID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		v["clientId"] = "unknown"
		return nil
	case err != nil:
		return store.Classify(err)
	}
	if inquiryID == nil {
		return nil
	}
	var inquiry models.Inquiry
	err = db.WithContext(ctx).Select("id", "client_id").First(&inquiry, *inquiryID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		v["inquiryId"] = "unknown"
	case err != nil:
		return store.Classify(err)
	case inquiry.ClientID != clientID:
		v["inquiryId"] = "belongs_to_other_client"
	}
	return nil
}
