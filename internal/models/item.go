package models

import "time"

// Item is master data for a priced component or service (panels, inverters, structure, labour).
type Item struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name      string  `gorm:"size:255;not null" json:"name"`
	Category  string  `gorm:"size:100;index" json:"category,omitempty"`
	Brand     string  `gorm:"size:100" json:"brand,omitempty"`
	Unit      string  `gorm:"size:20;not null;default:'nos'" json:"unit"`
	BasePrice float64 `gorm:"not null" json:"basePrice"`
	// GSTRate is a fraction: 0.12 for 12%.
	GSTRate float64 `gorm:"column:gst_rate;not null;default:0" json:"gstRate"`
	HSNCode string  `gorm:"column:hsn_code;size:10" json:"hsnCode,omitempty"`
	Active  bool    `gorm:"not null" json:"active"`
}

// PriceWithGST returns the unit price including GST.
func (i *Item) PriceWithGST() float64 {
	return i.BasePrice * (1 + i.GSTRate)
}
