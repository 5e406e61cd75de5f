package handlers

import (
	"net/http"
	"strings"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// ItemHandler manages the item master used to price quotation lines.
type ItemHandler struct {
	db *gorm.DB
}

func NewItemHandler(db *gorm.DB) *ItemHandler {
	return &ItemHandler{db: db}
}

type itemInput struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Brand     string  `json:"brand"`
	Unit      string  `json:"unit"`
	BasePrice float64 `json:"basePrice"`
	GSTRate   float64 `json:"gstRate"`
	HSNCode   string  `json:"hsnCode"`
	Active    *bool   `json:"active"`
}

func (in itemInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.MaxLen("unit", in.Unit, 20, v)
	validation.NonNegativeFloat("basePrice", in.BasePrice, v)
	// GST is entered as a fraction: 0.12 for 12%.
	validation.RangeFloat("gstRate", in.GSTRate, 0, 1, v)
	validation.MaxLen("hsnCode", in.HSNCode, 10, v)
	return v
}

func (in itemInput) apply(it *models.Item) {
	it.Name = strings.TrimSpace(in.Name)
	it.Category, it.Brand, it.HSNCode = in.Category, in.Brand, in.HSNCode
	it.Unit = in.Unit
	if it.Unit == "" {
		it.Unit = "nos"
	}
	it.BasePrice, it.GSTRate = in.BasePrice, in.GSTRate
	if in.Active != nil {
		it.Active = *in.Active
	}
}

// List answers GET /api/items?q=&category=&all=1. Inactive items are hidden unless all=1.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Model(&models.Item{})
	if r.URL.Query().Get("all") != "1" {
		q = q.Where("active = ?", true)
	}
	if c := r.URL.Query().Get("category"); c != "" {
		q = q.Where("category = ?", c)
	}
	if term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR hsn_code LIKE ?", like, like, like)
	}
	items := []models.Item{}
	if err := q.Order("category, name").Find(&items).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var it models.Item
	if err := h.db.WithContext(r.Context()).First(&it, id).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in itemInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate().Err(); err != nil {
		writeError(w, r, err)
		return
	}
	it := models.Item{Active: true}
	in.apply(&it)
	if err := h.db.WithContext(r.Context()).Create(&it).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, it)
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in itemInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate().Err(); err != nil {
		writeError(w, r, err)
		return
	}
	var it models.Item
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&it, id).Error; err != nil {
			return err
		}
		in.apply(&it)
		return tx.Save(&it).Error
	})
	if err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, it)
}

// Delete deactivates the item. Existing quotation lines keep their copied prices.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(r.Context()).Model(&models.Item{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		writeError(w, r, store.Classify(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, r, store.ErrNotFound)
		return
	}
	httpx.OK(w)
}
