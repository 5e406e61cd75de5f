package models

import (
	"strings"
	"time"
)

// Client is a customer of the EPC company: a homeowner, business or institution.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Company string `gorm:"size:255" json:"company,omitempty"`
	Email   string `gorm:"size:255;index" json:"email,omitempty"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Address string `gorm:"size:500" json:"address,omitempty"`
	City    string `gorm:"size:100" json:"city,omitempty"`
	State   string `gorm:"size:100" json:"state,omitempty"`
	Pincode string `gorm:"size:10" json:"pincode,omitempty"`
	GSTIN   string `gorm:"column:gstin;size:15" json:"gstin,omitempty"`

	Inquiries []Inquiry `gorm:"foreignKey:ClientID" json:"inquiries,omitempty"`
}

// DisplayName prefers the company name for business clients.
func (c *Client) DisplayName() string {
	if c.Company != "" {
		return c.Company
	}
	return c.Name
}

// FullAddress joins the non-empty address parts on one line.
func (c *Client) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{c.Address, c.City, c.State, c.Pincode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
