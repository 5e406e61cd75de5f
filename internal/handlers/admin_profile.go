package handlers

import (
	"net/http"
	"strings"

	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/policy"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// AdminProfileHandler manages authorization profiles and their permissions.
// Any change drops the whole profile cache since a profile covers many users.
type AdminProfileHandler struct {
	db    *gorm.DB
	cache *policy.CachedResolver
}

func NewAdminProfileHandler(db *gorm.DB, cache *policy.CachedResolver) *AdminProfileHandler {
	return &AdminProfileHandler{db: db, cache: cache}
}

func (h *AdminProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles := []models.Profile{}
	if err := h.db.WithContext(r.Context()).Preload("Permissions").Order("name").Find(&profiles).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, profiles)
}

// Permissions lists every grantable permission.
func (h *AdminProfileHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	perms := []models.Permission{}
	if err := h.db.WithContext(r.Context()).Order("resource_type, action").Find(&perms).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type profileInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (in profileInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 100, v)
	validation.MaxLen("description", in.Description, 500, v)
	return v
}

// lookupPermissions resolves "resource:action" codes, recording unknown ones.
func lookupPermissions(tx *gorm.DB, codes []string, v validation.Violations) ([]models.Permission, error) {
	out := make([]models.Permission, 0, len(codes))
	for _, code := range codes {
		res, act, ok := strings.Cut(code, ":")
		if !ok {
			v["permissions"] = "invalid:" + code
			continue
		}
		var p models.Permission
		err := tx.Where("resource_type = ? AND action = ?", res, act).Limit(1).Find(&p).Error
		if err != nil {
			return nil, err
		}
		if p.ID == 0 {
			v["permissions"] = "unknown:" + code
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (h *AdminProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in profileInput
	if !decode(w, r, &in) {
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	v := in.Validate()

	var profile models.Profile
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		perms, err := lookupPermissions(tx, in.Permissions, v)
		if err != nil {
			return err
		}
		if err := v.Err(); err != nil {
			return err
		}
		profile = models.Profile{Name: in.Name, Description: in.Description, Permissions: perms}
		return tx.Create(&profile).Error
	})
	if err != nil {
		if store.IsDuplicate(err) {
			httpx.JSONError(w, http.StatusConflict, "name_already_exists", nil)
			return
		}
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

// SetPermissions answers PUT /api/admin/profiles/{id}/permissions, replacing the set.
func (h *AdminProfileHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Permissions []string `json:"permissions"`
	}
	if !decode(w, r, &in) {
		return
	}

	var profile models.Profile
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile, id).Error; err != nil {
			return err
		}
		v := validation.Violations{}
		perms, err := lookupPermissions(tx, in.Permissions, v)
		if err != nil {
			return err
		}
		if err := v.Err(); err != nil {
			return err
		}
		if err := tx.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
		profile.Permissions = perms
		return nil
	})
	if err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	h.cache.InvalidateAll()
	httpx.JSON(w, http.StatusOK, profile)
}

// Delete removes a custom profile. System profiles and profiles still assigned
// to users are refused.
func (h *AdminProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var profile models.Profile
	if err := h.db.WithContext(r.Context()).First(&profile, id).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	if profile.IsSystem {
		httpx.JSONError(w, http.StatusForbidden, "cannot_delete_system_profile", nil)
		return
	}
	var users int64
	if err := h.db.WithContext(r.Context()).Model(&models.User{}).Where("profile_id = ?", id).Count(&users).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	if users > 0 {
		httpx.JSONError(w, http.StatusConflict, "profile_has_users", nil)
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(&profile).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	h.cache.InvalidateAll()
	httpx.OK(w)
}
