package handlers

import (
	"net/http"
	"strings"

	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/policy"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// minPasswordLen applies to operator accounts created through the API.
const minPasswordLen = 8

// AdminUserHandler manages operator accounts and their profile assignment.
type AdminUserHandler struct {
	db    *gorm.DB
	cache *policy.CachedResolver
}

func NewAdminUserHandler(db *gorm.DB, cache *policy.CachedResolver) *AdminUserHandler {
	return &AdminUserHandler{db: db, cache: cache}
}

func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	users := []models.User{}
	if err := h.db.WithContext(r.Context()).Preload("Profile").Order("email").Find(&users).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

type userInput struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	ProfileID *uint  `json:"profileId"`
}

func (in userInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.MaxLen("name", in.Name, 255, v)
	if len(in.Password) < minPasswordLen {
		v["password"] = "too_short"
	}
	return v
}

func (h *AdminUserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if !decode(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	v := in.Validate()
	if in.ProfileID != nil {
		if err := h.checkProfile(r, *in.ProfileID, v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := v.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := models.User{Email: in.Email, Name: in.Name, Password: string(hash), Active: true, ProfileID: in.ProfileID}
	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if store.IsDuplicate(err) {
			httpx.JSONError(w, http.StatusConflict, "email_already_exists", nil)
			return
		}
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type assignProfileInput struct {
	ProfileID *uint `json:"profileId"`
	Active    *bool `json:"active"`
}

// Update answers PUT /api/admin/users/{id}: assign or clear the profile and
// optionally (de)activate the account. Admins cannot lock themselves out.
func (h *AdminUserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in assignProfileInput
	if !decode(w, r, &in) {
		return
	}
	if self, _ := auth.UserIDFromContext(r.Context()); self == id && (in.ProfileID == nil || (in.Active != nil && !*in.Active)) {
		httpx.JSONError(w, http.StatusConflict, "cannot_demote_self", nil)
		return
	}
	v := validation.Violations{}
	if in.ProfileID != nil {
		if err := h.checkProfile(r, *in.ProfileID, v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := v.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	updates := map[string]any{"profile_id": in.ProfileID}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	res := h.db.WithContext(r.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		writeError(w, r, store.Classify(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, r, store.ErrNotFound)
		return
	}
	h.cache.Invalidate(id)

	var user models.User
	if err := h.db.WithContext(r.Context()).Preload("Profile").First(&user, id).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *AdminUserHandler) checkProfile(r *http.Request, id uint, v validation.Violations) error {
	var n int64
	if err := h.db.WithContext(r.Context()).Model(&models.Profile{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return store.Classify(err)
	}
	if n == 0 {
		v["profileId"] = "unknown"
	}
	return nil
}
