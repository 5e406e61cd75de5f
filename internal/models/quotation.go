package models

import (
	"math"
	"time"
)

// QuotationStatus represents the commercial state of a quotation.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "DRAFT"
	QuotationSent     QuotationStatus = "SENT"
	QuotationAccepted QuotationStatus = "ACCEPTED"
	QuotationRejected QuotationStatus = "REJECTED"
)

// QuotationStatuses lists the accepted status values.
var QuotationStatuses = []string{
	string(QuotationDraft), string(QuotationSent), string(QuotationAccepted), string(QuotationRejected),
}

// Quotation is the root of a quotation hierarchy. It owns its versions, which own their items;
// the whole tree is removed together by QuotationService.Delete.
type Quotation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Title  string          `gorm:"size:255;not null" json:"title"`
	Status QuotationStatus `gorm:"size:20;not null;index" json:"status"`

	ClientID  uint     `gorm:"index;not null" json:"clientId"`
	Client    *Client  `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT" json:"client,omitempty"`
	InquiryID *uint    `gorm:"index" json:"inquiryId,omitempty"`
	Inquiry   *Inquiry `gorm:"foreignKey:InquiryID;constraint:OnDelete:SET NULL" json:"inquiry,omitempty"`

	CreatedByID *uint `gorm:"index" json:"createdById,omitempty"`

	Versions []QuotationVersion `gorm:"foreignKey:QuotationID" json:"versions,omitempty"`
}

// Latest returns the loaded version with the highest number, or nil when none are loaded.
func (q *Quotation) Latest() *QuotationVersion {
	var latest *QuotationVersion
	for i := range q.Versions {
		if latest == nil || q.Versions[i].VersionNumber > latest.VersionNumber {
			latest = &q.Versions[i]
		}
	}
	return latest
}

// Version returns the loaded version with the given number.
func (q *Quotation) Version(n int) *QuotationVersion {
	for i := range q.Versions {
		if q.Versions[i].VersionNumber == n {
			return &q.Versions[i]
		}
	}
	return nil
}

// QuotationVersion is one revision of a quotation's priced line items.
type QuotationVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	QuotationID uint       `gorm:"not null;uniqueIndex:idx_quotation_version" json:"quotationId"`
	Quotation   *Quotation `gorm:"foreignKey:QuotationID;constraint:OnDelete:RESTRICT" json:"-"`

	VersionNumber int        `gorm:"not null;uniqueIndex:idx_quotation_version" json:"versionNumber"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	ValidUntil    *time.Time `json:"validUntil,omitempty"`
	// DiscountPct is a fraction applied to the subtotal before tax.
	DiscountPct float64 `gorm:"not null;default:0" json:"discountPct"`

	Items []QuotationItem `gorm:"foreignKey:VersionID" json:"items,omitempty"`
}

// QuotationItem is a priced line on a quotation version.
type QuotationItem struct {
	ID uint `gorm:"primaryKey" json:"id"`

	VersionID uint              `gorm:"column:version_id;index;not null" json:"versionId"`
	Version   *QuotationVersion `gorm:"foreignKey:VersionID;constraint:OnDelete:RESTRICT" json:"-"`

	// ItemID references the master item the line was priced from, if any.
	ItemID *uint `gorm:"index" json:"itemId,omitempty"`

	Description string  `gorm:"size:500;not null" json:"description"`
	Unit        string  `gorm:"size:20;not null" json:"unit"`
	Quantity    float64 `gorm:"not null" json:"quantity"`
	UnitPrice   float64 `gorm:"not null" json:"unitPrice"`
	// TaxRate is a fraction: 0.18 for 18% GST.
	TaxRate  float64 `gorm:"not null" json:"taxRate"`
	Position int     `gorm:"not null;default:0" json:"position"`
}

// Totals holds the computed money amounts of a version, rounded to paise.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Amount returns quantity times unit price.
func (it *QuotationItem) Amount() float64 {
	return it.Quantity * it.UnitPrice
}

// Totals computes subtotal, discount, tax and grand total. The discount is spread
// proportionally across lines so each line is taxed at its own rate.
func (v *QuotationVersion) Totals() Totals {
	var t Totals
	factor := 1 - v.DiscountPct
	for i := range v.Items {
		amount := v.Items[i].Amount()
		t.Subtotal += amount
		t.Tax += amount * factor * v.Items[i].TaxRate
	}
	t.Discount = t.Subtotal * v.DiscountPct
	t.Subtotal = round2(t.Subtotal)
	t.Discount = round2(t.Discount)
	t.Tax = round2(t.Tax)
	t.Total = round2(t.Subtotal - t.Discount + t.Tax)
	return t
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
