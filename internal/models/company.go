package models

import "time"

// CompanySettings is the single-row EPC company header printed on quotations.
type CompanySettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name    string `gorm:"size:255;not null" json:"name"`
	GSTIN   string `gorm:"column:gstin;size:15" json:"gstin,omitempty"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Website string `gorm:"size:255" json:"website,omitempty"`
	Address string `gorm:"size:500" json:"address,omitempty"`
	City    string `gorm:"size:100" json:"city,omitempty"`
	State   string `gorm:"size:100" json:"state,omitempty"`
	Pincode string `gorm:"size:10" json:"pincode,omitempty"`

	// Terms is appended to every rendered quotation.
	Terms string `gorm:"type:text" json:"terms,omitempty"`
}
