package handlers

import (
	"net/http"
	"strings"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/services"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

type ClientHandler struct {
	db *gorm.DB
}

func NewClientHandler(db *gorm.DB) *ClientHandler {
	return &ClientHandler{db: db}
}

type clientInput struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	GSTIN   string `json:"gstin"`
}

func (in *clientInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.GSTIN = strings.ToUpper(strings.TrimSpace(in.GSTIN))
}

func (in clientInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.MaxLen("company", in.Company, 255, v)
	validation.Email("email", in.Email, v)
	validation.MaxLen("phone", in.Phone, 50, v)
	validation.MaxLen("pincode", in.Pincode, 10, v)
	validation.GSTIN("gstin", in.GSTIN, v)
	return v
}

func (in clientInput) apply(c *models.Client) {
	c.Name, c.Company, c.Email, c.Phone = in.Name, in.Company, in.Email, in.Phone
	c.Address, c.City, c.State, c.Pincode, c.GSTIN = in.Address, in.City, in.State, in.Pincode, in.GSTIN
}

// List answers GET /api/clients?q=&page=&perPage=.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	page := services.Page{Number: queryInt(r, "page"), PerPage: queryInt(r, "perPage")}.Normalize()
	q := h.db.WithContext(r.Context()).Model(&models.Client{})
	if term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	clients := []models.Client{}
	if err := q.Order("name").Limit(page.PerPage).Offset((page.Number - 1) * page.PerPage).Find(&clients).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[models.Client]{Items: clients, Total: total, Page: page.Number, PerPage: page.PerPage})
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var c models.Client
	err := h.db.WithContext(r.Context()).
		Preload("Inquiries", func(tx *gorm.DB) *gorm.DB { return tx.Order("id DESC") }).
		First(&c, id).Error
	if err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in clientInput
	if !decode(w, r, &in) {
		return
	}
	in.normalize()
	if err := in.Validate().Err(); err != nil {
		writeError(w, r, err)
		return
	}
	var c models.Client
	in.apply(&c)
	if err := h.db.WithContext(r.Context()).Create(&c).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in clientInput
	if !decode(w, r, &in) {
		return
	}
	in.normalize()
	if err := in.Validate().Err(); err != nil {
		writeError(w, r, err)
		return
	}
	var c models.Client
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return err
		}
		in.apply(&c)
		return tx.Save(&c).Error
	})
	if err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// Delete removes a client. Clients with inquiries, quotations or documents are
// protected by foreign keys and answer 409; their share tokens go with them.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(r.Context()).Delete(&models.Client{}, id)
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
