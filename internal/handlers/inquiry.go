package handlers

import (
	"net/http"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/services"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

type InquiryHandler struct {
	db *gorm.DB
}

func NewInquiryHandler(db *gorm.DB) *InquiryHandler {
	return &InquiryHandler{db: db}
}

type inquiryInput struct {
	ClientID    uint    `json:"clientId"`
	SiteAddress string  `json:"siteAddress"`
	CapacityKW  float64 `json:"capacityKw"`
	SystemType  string  `json:"systemType"`
	Status      string  `json:"status"`
	Source      string  `json:"source"`
	Notes       string  `json:"notes"`
}

func (in *inquiryInput) defaults() {
	if in.SystemType == "" {
		in.SystemType = string(models.SystemOnGrid)
	}
	if in.Status == "" {
		in.Status = string(models.InquiryNew)
	}
}

func (in inquiryInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.RequiredID("clientId", in.ClientID, v)
	validation.NonNegativeFloat("capacityKw", in.CapacityKW, v)
	validation.OneOf("systemType", in.SystemType, models.SystemTypes, v)
	validation.OneOf("status", in.Status, models.InquiryStatuses, v)
	validation.MaxLen("siteAddress", in.SiteAddress, 500, v)
	validation.MaxLen("source", in.Source, 100, v)
	return v
}

func (in inquiryInput) apply(i *models.Inquiry) {
	i.ClientID = in.ClientID
	i.SiteAddress = in.SiteAddress
	i.CapacityKW = in.CapacityKW
	i.SystemType = models.SystemType(in.SystemType)
	i.Status = models.InquiryStatus(in.Status)
	i.Source = in.Source
	i.Notes = in.Notes
}

// validate also checks the client exists, so a bad id is a 400 rather than a 409.
func (h *InquiryHandler) validate(r *http.Request, in inquiryInput) error {
	v := in.Validate()
	if in.ClientID != 0 {
		var n int64
		if err := h.db.WithContext(r.Context()).Model(&models.Client{}).Where("id = ?", in.ClientID).Count(&n).Error; err != nil {
			return store.Classify(err)
		}
		if n == 0 {
			v["clientId"] = "unknown"
		}
	}
	return v.Err()
}

// List answers GET /api/inquiries?clientId=&status=&page=&perPage=.
func (h *InquiryHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, ok := queryID(r, "clientId")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", map[string]string{"param": "clientId"})
		return
	}
	page := services.Page{Number: queryInt(r, "page"), PerPage: queryInt(r, "perPage")}.Normalize()
	q := h.db.WithContext(r.Context()).Model(&models.Inquiry{})
	if clientID != nil {
		q = q.Where("client_id = ?", *clientID)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	out := []models.Inquiry{}
	if err := q.Preload("Client").Order("id DESC").Limit(page.PerPage).Offset((page.Number - 1) * page.PerPage).Find(&out).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[models.Inquiry]{Items: out, Total: total, Page: page.Number, PerPage: page.PerPage})
}

func (h *InquiryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var i models.Inquiry
	if err := h.db.WithContext(r.Context()).Preload("Client").First(&i, id).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, i)
}

func (h *InquiryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in inquiryInput
	if !decode(w, r, &in) {
		return
	}
	in.defaults()
	if err := h.validate(r, in); err != nil {
		writeError(w, r, err)
		return
	}
	var i models.Inquiry
	in.apply(&i)
	if err := h.db.WithContext(r.Context()).Create(&i).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, i)
}

func (h *InquiryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in inquiryInput
	if !decode(w, r, &in) {
		return
	}
	in.defaults()
	if err := h.validate(r, in); err != nil {
		writeError(w, r, err)
		return
	}
	var i models.Inquiry
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&i, id).Error; err != nil {
			return err
		}
		in.apply(&i)
		return tx.Omit("Client").Save(&i).Error
	})
	if err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, i)
}

type inquiryStatusInput struct {
	Status string `json:"status"`
}

// SetStatus moves an inquiry through the sales funnel.
func (h *InquiryHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in inquiryStatusInput
	if !decode(w, r, &in) {
		return
	}
	v := validation.Violations{}
	validation.Required("status", in.Status, v)
	validation.OneOf("status", in.Status, models.InquiryStatuses, v)
	if err := v.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	res := h.db.WithContext(r.Context()).Model(&models.Inquiry{}).Where("id = ?", id).Update("status", in.Status)
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

func (h *InquiryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(r.Context()).Delete(&models.Inquiry{}, id)
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
