package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// CompanyHandler edits the single company settings row printed on quotations.
type CompanyHandler struct {
	db *gorm.DB
}

func NewCompanyHandler(db *gorm.DB) *CompanyHandler {
	return &CompanyHandler{db: db}
}

type companyInput struct {
	Name    string `json:"name"`
	GSTIN   string `json:"gstin"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Terms   string `json:"terms"`
}

func (in companyInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.GSTIN("gstin", in.GSTIN, v)
	validation.Email("email", in.Email, v)
	validation.MaxLen("pincode", in.Pincode, 10, v)
	return v
}

// LoadCompany returns the settings row, or an empty one when none was saved yet.
func LoadCompany(db *gorm.DB) (*models.CompanySettings, error) {
	var s models.CompanySettings
	err := db.Order("id").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &s, nil
	}
	if err != nil {
		return nil, store.Classify(err)
	}
	return &s, nil
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := LoadCompany(h.db.WithContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in companyInput
	if !decode(w, r, &in) {
		return
	}
	in.GSTIN = strings.ToUpper(strings.TrimSpace(in.GSTIN))
	if err := in.Validate().Err(); err != nil {
		writeError(w, r, err)
		return
	}

	var s *models.CompanySettings
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		if s, err = LoadCompany(tx); err != nil {
			return err
		}
		s.Name, s.GSTIN, s.Email, s.Phone, s.Website = in.Name, in.GSTIN, in.Email, in.Phone, in.Website
		s.Address, s.City, s.State, s.Pincode, s.Terms = in.Address, in.City, in.State, in.Pincode, in.Terms
		return tx.Save(s).Error
	})
	if err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}
