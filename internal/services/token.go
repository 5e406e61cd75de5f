package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

var (
	// ErrTokenInvalid is returned by Resolve for any token that must not grant access.
	ErrTokenInvalid = errors.New("share token invalid")
	// ErrTokenExpired is the expired flavour of ErrTokenInvalid.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
	// ErrTokenSpaceExhausted means every generation attempt collided with an existing token.
	ErrTokenSpaceExhausted = errors.New("could not generate a unique share token")
)

// TokenPattern is the exact shape of a share token.
var TokenPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

const (
	tokenBytes       = 4
	maxTokenAttempts = 5
)

// TokenInput holds the mutable fields of a share token.
// On update a nil InquiryID or ExpiresAt clears the value; a nil AllowDownload keeps it.
// The HTTP layer only passes a nil InquiryID or ExpiresAt when the caller sent an explicit null.
type TokenInput struct {
	ClientID      uint       `json:"clientId"`
	InquiryID     *uint      `json:"inquiryId"`
	AllowDownload *bool      `json:"allowDownload"`
	ExpiresAt     *Timestamp `json:"expiresAt"`
}

func (in TokenInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.RequiredID("clientId", in.ClientID, v)
	if in.InquiryID != nil && *in.InquiryID == 0 {
		v["inquiryId"] = "unknown"
	}
	return v
}

// Intent is what a share-token holder wants to do with a document.
type Intent int

const (
	IntentView Intent = iota
	IntentDownload
)

func (i Intent) String() string {
	if i == IntentDownload {
		return "download"
	}
	return "view"
}

// Grant is a resolved, currently valid share token.
type Grant struct {
	TokenID       uint
	ClientID      uint
	InquiryID     *uint
	AllowDownload bool
	ExpiresAt     *time.Time
	Client        *models.Client
	Inquiry       *models.Inquiry
}

// Permits reports whether the grant allows the intent. Viewing is always allowed;
// download needs AllowDownload. A nil grant permits nothing.
func (g *Grant) Permits(i Intent) bool {
	if g == nil {
		return false
	}
	switch i {
	case IntentView:
		return true
	case IntentDownload:
		return g.AllowDownload
	}
	return false
}

// Covers reports whether the document falls inside the grant's client and inquiry scope.
func (g *Grant) Covers(doc *models.Document) bool {
	if g == nil || doc == nil || doc.ClientID != g.ClientID {
		return false
	}
	if g.InquiryID == nil {
		return true
	}
	return doc.InquiryID != nil && *doc.InquiryID == *g.InquiryID
}

// TokenService issues, edits, revokes and resolves share tokens.
type TokenService struct {
	db   *gorm.DB
	now  func() time.Time
	rand io.Reader
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithRandom replaces the random source used for token generation.
func WithRandom(r io.Reader) TokenOption {
	return func(s *TokenService) { s.rand = r }
}

func NewTokenService(db *gorm.DB, opts ...TokenOption) *TokenService {
	s := &TokenService{db: db, now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate draws 4 random bytes and renders them as 8 upper-case hex characters.
func (s *TokenService) Generate() (string, error) {
	var b [tokenBytes]byte
	if _, err := io.ReadFull(s.rand, b[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// Create issues a new token. AllowDownload defaults to true; a nil ExpiresAt never expires.
// A collision on the unique token index triggers a fresh draw, up to maxTokenAttempts.
func (s *TokenService) Create(ctx context.Context, in TokenInput) (*models.TokenAccess, error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	allow := true
	if in.AllowDownload != nil {
		allow = *in.AllowDownload
	}
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.Generate()
		if err != nil {
			return nil, err
		}
		row := models.TokenAccess{
			Token:         token,
			ClientID:      in.ClientID,
			InquiryID:     in.InquiryID,
			AllowDownload: allow,
			ExpiresAt:     ptrTime(in.ExpiresAt),
		}
		err = s.db.WithContext(ctx).Create(&row).Error
		if err == nil {
			return s.Get(ctx, row.ID)
		}
		if !store.IsDuplicate(err) {
			return nil, store.Classify(err)
		}
	}
	return nil, ErrTokenSpaceExhausted
}

// Update overwrites the mutable fields. The token string never changes.
// An expired token cannot be edited back to life: it yields ErrTokenExpired and a new
// token has to be issued.
func (s *TokenService) Update(ctx context.Context, id uint, in TokenInput) (*models.TokenAccess, error) {
	var row models.TokenAccess
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, store.Classify(err)
	}
	if row.ExpiredAt(s.now()) {
		return nil, fmt.Errorf("token %d: %w", id, ErrTokenExpired)
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	updates := map[string]any{
		"client_id":  in.ClientID,
		"inquiry_id": in.InquiryID,
		"expires_at": ptrTime(in.ExpiresAt),
	}
	if in.AllowDownload != nil {
		updates["allow_download"] = *in.AllowDownload
	}
	if err := s.db.WithContext(ctx).Model(&row).Updates(updates).Error; err != nil {
		return nil, store.Classify(err)
	}
	return s.Get(ctx, id)
}

// Revoke deletes the token row.
func (s *TokenService) Revoke(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.TokenAccess{}, id)
	if res.Error != nil {
		return store.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("token %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// Get loads a token with its client and inquiry.
func (s *TokenService) Get(ctx context.Context, id uint) (*models.TokenAccess, error) {
	var row models.TokenAccess
	if err := s.db.WithContext(ctx).Preload("Client").Preload("Inquiry").First(&row, id).Error; err != nil {
		return nil, store.Classify(err)
	}
	return &row, nil
}

// List returns tokens newest first, optionally for one client.
func (s *TokenService) List(ctx context.Context, clientID *uint) ([]models.TokenAccess, error) {
	q := s.db.WithContext(ctx).Preload("Client").Preload("Inquiry").Order("id DESC")
	if clientID != nil {
		q = q.Where("client_id = ?", *clientID)
	}
	var rows []models.TokenAccess
	if err := q.Find(&rows).Error; err != nil {
		return nil, store.Classify(err)
	}
	return rows, nil
}

// Resolve validates a presented token. It fails closed: malformed, unknown and expired
// tokens yield ErrTokenInvalid (ErrTokenExpired for the latter), and store failures are
// returned as errors, never as a grant. Expired rows are left in place.
func (s *TokenService) Resolve(ctx context.Context, presented string) (*Grant, error) {
	token := strings.ToUpper(strings.TrimSpace(presented))
	if !TokenPattern.MatchString(token) {
		return nil, ErrTokenInvalid
	}
	var row models.TokenAccess
	err := s.db.WithContext(ctx).Preload("Client").Preload("Inquiry").Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, store.Classify(err)
	}
	if row.ExpiredAt(s.now()) {
		return nil, ErrTokenExpired
	}
	return &Grant{
		TokenID:       row.ID,
		ClientID:      row.ClientID,
		InquiryID:     row.InquiryID,
		AllowDownload: row.AllowDownload,
		ExpiresAt:     row.ExpiresAt,
		Client:        row.Client,
		Inquiry:       row.Inquiry,
	}, nil
}

func (s *TokenService) validate(ctx context.Context, in TokenInput) error {
	v := in.Validate()
	if v.Empty() {
		if err := checkClientScope(ctx, s.db, in.ClientID, in.InquiryID, v); err != nil {
			return err
		}
	}
	return v.Err()
}
