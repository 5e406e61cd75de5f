package models

import "time"

// SystemType is the kind of solar installation requested.
type SystemType string

const (
	SystemOnGrid  SystemType = "ON_GRID"
	SystemOffGrid SystemType = "OFF_GRID"
	SystemHybrid  SystemType = "HYBRID"
)

// InquiryStatus tracks an inquiry through the sales funnel.
type InquiryStatus string

const (
	InquiryNew        InquiryStatus = "NEW"
	InquirySiteSurvey InquiryStatus = "SITE_SURVEY"
	InquiryQuoted     InquiryStatus = "QUOTED"
	InquiryWon        InquiryStatus = "WON"
	InquiryLost       InquiryStatus = "LOST"
)

// SystemTypes lists the accepted system type values.
var SystemTypes = []string{string(SystemOnGrid), string(SystemOffGrid), string(SystemHybrid)}

// InquiryStatuses lists the accepted inquiry status values.
var InquiryStatuses = []string{
	string(InquiryNew), string(InquirySiteSurvey), string(InquiryQuoted), string(InquiryWon), string(InquiryLost),
}

// Inquiry is a project lead for one client site.
type Inquiry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ClientID uint    `gorm:"index;not null" json:"clientId"`
	Client   *Client `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT" json:"client,omitempty"`

	SiteAddress string        `gorm:"size:500" json:"siteAddress,omitempty"`
	CapacityKW  float64       `gorm:"column:capacity_kw;not null;default:0" json:"capacityKw"`
	SystemType  SystemType    `gorm:"size:20;not null;default:'ON_GRID'" json:"systemType"`
	Status      InquiryStatus `gorm:"size:20;not null;default:'NEW';index" json:"status"`
	Source      string        `gorm:"size:100" json:"source,omitempty"`
	Notes       string        `gorm:"type:text" json:"notes,omitempty"`
}

// IsClosed reports whether the inquiry reached a terminal funnel state.
func (i *Inquiry) IsClosed() bool {
	return i.Status == InquiryWon || i.Status == InquiryLost
}
