package models

import "time"

// DocumentCategory classifies uploaded project paperwork.
type DocumentCategory string

const (
	DocQuotation  DocumentCategory = "QUOTATION"
	DocAgreement  DocumentCategory = "AGREEMENT"
	DocSiteSurvey DocumentCategory = "SITE_SURVEY"
	DocDrawing    DocumentCategory = "DRAWING"
	DocInvoice    DocumentCategory = "INVOICE"
	DocOther      DocumentCategory = "OTHER"
)

// DocumentCategories lists the accepted category values.
var DocumentCategories = []string{
	string(DocQuotation), string(DocAgreement), string(DocSiteSurvey),
	string(DocDrawing), string(DocInvoice), string(DocOther),
}

// Document is a client file stored on local disk under StoredName.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	ClientID  uint     `gorm:"index;not null" json:"clientId"`
	Client    *Client  `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT" json:"-"`
	InquiryID *uint    `gorm:"index" json:"inquiryId,omitempty"`
	Inquiry   *Inquiry `gorm:"foreignKey:InquiryID;constraint:OnDelete:SET NULL" json:"-"`

	Category     DocumentCategory `gorm:"size:20;not null" json:"category"`
	OriginalName string           `gorm:"size:255;not null" json:"originalName"`
	StoredName   string           `gorm:"size:64;not null;uniqueIndex" json:"-"`
	MimeType     string           `gorm:"size:100" json:"mimeType"`
	Size         int64            `gorm:"not null" json:"size"`
	UploadedByID *uint            `json:"uploadedById,omitempty"`
}
