package models

import "time"

// TokenAccess is a share-token grant letting an external client read (and optionally download)
// its documents without an operator account. The Token value is the lookup key.
type TokenAccess struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Token string `gorm:"size:8;not null;uniqueIndex" json:"token"`

	ClientID  uint     `gorm:"index;not null" json:"clientId"`
	Client    *Client  `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"client,omitempty"`
	InquiryID *uint    `gorm:"index" json:"inquiryId"`
	Inquiry   *Inquiry `gorm:"foreignKey:InquiryID;constraint:OnDelete:CASCADE" json:"inquiry,omitempty"`

	AllowDownload bool       `gorm:"not null" json:"allowDownload"`
	ExpiresAt     *time.Time `gorm:"index" json:"expiresAt"`
}

// TableName keeps the table name stable regardless of pluralisation rules.
func (TokenAccess) TableName() string { return "token_accesses" }

// ExpiredAt reports whether the grant is expired at t. A nil expiry never expires;
// otherwise the grant is expired from the expiry instant onwards.
func (t *TokenAccess) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
