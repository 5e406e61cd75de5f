package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// LineInput is one requested quotation line. When ItemID is set, missing fields are
// taken from the item master.
type LineInput struct {
	ItemID      *uint    `json:"itemId"`
	Description string   `json:"description"`
	Unit        string   `json:"unit"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice"`
	TaxRate     *float64 `json:"taxRate"`
}

// VersionInput describes a new quotation version.
type VersionInput struct {
	Notes       string      `json:"notes"`
	ValidUntil  *Timestamp  `json:"validUntil"`
	DiscountPct float64     `json:"discountPct"`
	Items       []LineInput `json:"items"`
}

// QuotationInput creates a quotation with its first version.
type QuotationInput struct {
	Title     string `json:"title"`
	ClientID  uint   `json:"clientId"`
	InquiryID *uint  `json:"inquiryId"`
	VersionInput
}

func (in VersionInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.RangeFloat("discountPct", in.DiscountPct, 0, 1, v)
	validation.MaxLen("notes", in.Notes, 5000, v)
	if len(in.Items) == 0 {
		v["items"] = "required"
	}
	for i, line := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if line.ItemID == nil {
			validation.Required(prefix+"description", line.Description, v)
			if line.UnitPrice == nil {
				v[prefix+"unitPrice"] = "required"
			}
		}
		validation.MaxLen(prefix+"description", line.Description, 500, v)
		validation.PositiveFloat(prefix+"quantity", line.Quantity, v)
		if line.UnitPrice != nil {
			validation.NonNegativeFloat(prefix+"unitPrice", *line.UnitPrice, v)
		}
		if line.TaxRate != nil {
			validation.RangeFloat(prefix+"taxRate", *line.TaxRate, 0, 1, v)
		}
	}
	return v
}

func (in QuotationInput) Validate() validation.Violations {
	v := in.VersionInput.Validate()
	validation.Required("title", in.Title, v)
	validation.MaxLen("title", in.Title, 255, v)
	validation.RequiredID("clientId", in.ClientID, v)
	return v
}

// QuotationFilter narrows List results.
type QuotationFilter struct {
	ClientID *uint
	Status   string
	Page     Page
}

type QuotationService struct {
	db *gorm.DB
}

func NewQuotationService(db *gorm.DB) *QuotationService {
	return &QuotationService{db: db}
}

// Create stores a DRAFT quotation with version 1 and its lines in one transaction.
func (s *QuotationService) Create(ctx context.Context, in QuotationInput, createdBy *uint) (*models.Quotation, error) {
	v := in.Validate()
	if v.Empty() {
		if err := checkClientScope(ctx, s.db, in.ClientID, in.InquiryID, v); err != nil {
			return nil, err
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	q := models.Quotation{
		Title:       strings.TrimSpace(in.Title),
		Status:      models.QuotationDraft,
		ClientID:    in.ClientID,
		InquiryID:   in.InquiryID,
		CreatedByID: createdBy,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&q).Error; err != nil {
			return err
		}
		_, err := createVersion(tx, q.ID, 1, in.VersionInput)
		return err
	})
	if err != nil {
		return nil, store.Classify(err)
	}
	return s.Get(ctx, q.ID)
}

// AddVersion appends the next numbered version to an existing quotation.
func (s *QuotationService) AddVersion(ctx context.Context, quotationID uint, in VersionInput) (*models.QuotationVersion, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	var version *models.QuotationVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Quotation
		if err := tx.Select("id").First(&q, quotationID).Error; err != nil {
			return err
		}
		var last int
		if err := tx.Model(&models.QuotationVersion{}).
			Where("quotation_id = ?", quotationID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		var err error
		version, err = createVersion(tx, quotationID, last+1, in)
		return err
	})
	if err != nil {
		return nil, store.Classify(err)
	}
	return version, nil
}

// createVersion prices the lines and inserts the version with its items.
func createVersion(tx *gorm.DB, quotationID uint, number int, in VersionInput) (*models.QuotationVersion, error) {
	items, err := priceLines(tx, in.Items)
	if err != nil {
		return nil, err
	}
	version := models.QuotationVersion{
		QuotationID:   quotationID,
		VersionNumber: number,
		Notes:         in.Notes,
		ValidUntil:    ptrTime(in.ValidUntil),
		DiscountPct:   in.DiscountPct,
		Items:         items,
	}
	if err := tx.Create(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// priceLines resolves item-master references into concrete quotation lines.
func priceLines(tx *gorm.DB, lines []LineInput) ([]models.QuotationItem, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if l.ItemID != nil {
			ids = append(ids, *l.ItemID)
		}
	}
	master := map[uint]models.Item{}
	if len(ids) > 0 {
		var found []models.Item
		if err := tx.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return nil, err
		}
		for _, it := range found {
			master[it.ID] = it
		}
	}

	v := validation.Violations{}
	out := make([]models.QuotationItem, 0, len(lines))
	for i, l := range lines {
		line := models.QuotationItem{
			ItemID:      l.ItemID,
			Description: strings.TrimSpace(l.Description),
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			Position:    i + 1,
		}
		if l.ItemID != nil {
			it, ok := master[*l.ItemID]
			if !ok {
				v[fmt.Sprintf("items[%d].itemId", i)] = "unknown"
				continue
			}
			if line.Description == "" {
				line.Description = it.Name
			}
			if line.Unit == "" {
				line.Unit = it.Unit
			}
			line.UnitPrice = it.BasePrice
			line.TaxRate = it.GSTRate
		}
		if l.UnitPrice != nil {
			line.UnitPrice = *l.UnitPrice
		}
		if l.TaxRate != nil {
			line.TaxRate = *l.TaxRate
		}
		if line.Unit == "" {
			line.Unit = "nos"
		}
		out = append(out, line)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus changes the commercial status of a quotation.
func (s *QuotationService) UpdateStatus(ctx context.Context, id uint, status string) error {
	v := validation.Violations{}
	validation.Required("status", status, v)
	validation.OneOf("status", status, models.QuotationStatuses, v)
	if err := v.Err(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Quotation{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return store.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quotation %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// Get loads a quotation with client, inquiry, versions and their items.
func (s *QuotationService) Get(ctx context.Context, id uint) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Inquiry").
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("version_number") }).
		Preload("Versions.Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&q, id).Error
	if err != nil {
		return nil, store.Classify(err)
	}
	return &q, nil
}

// List returns quotations newest first, with the total count before paging.
func (s *QuotationService) List(ctx context.Context, f QuotationFilter) ([]models.Quotation, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Quotation{})
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, store.Classify(err)
	}
	var out []models.Quotation
	if err := f.Page.apply(q.Preload("Client").Order("id DESC")).Find(&out).Error; err != nil {
		return nil, 0, store.Classify(err)
	}
	return out, total, nil
}

// Delete removes a quotation together with every version and item it owns.
// Children go before parents, all inside one transaction: either every row is
// removed or, on any failure, none is. A missing quotation yields store.ErrNotFound.
func (s *QuotationService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var versionIDs []uint
		if err := tx.Model(&models.QuotationVersion{}).Where("quotation_id = ?", id).Pluck("id", &versionIDs).Error; err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		if len(versionIDs) > 0 {
			if err := tx.Where("version_id IN ?", versionIDs).Delete(&models.QuotationItem{}).Error; err != nil {
				return fmt.Errorf("delete items: %w", err)
			}
			if err := tx.Where("id IN ?", versionIDs).Delete(&models.QuotationVersion{}).Error; err != nil {
				return fmt.Errorf("delete versions: %w", err)
			}
		}
		res := tx.Delete(&models.Quotation{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete quotation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("quotation %d: %w", id, store.ErrNotFound)
		}
		return nil
	})
	return store.Classify(err)
}

// ComputeTotals returns the totals of the given version number, or of the latest
// version when number is zero.
func (s *QuotationService) ComputeTotals(q *models.Quotation, number int) (models.Totals, error) {
	v := q.Latest()
	if number > 0 {
		v = q.Version(number)
	}
	if v == nil {
		return models.Totals{}, fmt.Errorf("quotation %d version %d: %w", q.ID, number, store.ErrNotFound)
	}
	return v.Totals(), nil
}

// IsValidation reports whether err carries field violations.
func IsValidation(err error) bool {
	var verr *validation.Error
	return errors.As(err, &verr)
}
