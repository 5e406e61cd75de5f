package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db       *gorm.DB
	sessions *auth.Sessions
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the credentials and sets the session cookie.
// Unknown emails, inactive accounts and bad passwords all answer the same 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"email": "required", "password": "required"})
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Preload("Profile").Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, r, store.Classify(err))
		return
	}
	if err != nil || !user.Active || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	h.sessions.Create(w, user.ID)
	httpx.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	httpx.OK(w)
}

// Me returns the signed-in user with their profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var user models.User
	if err := h.db.WithContext(r.Context()).Preload("Profile.Permissions").First(&user, uid).Error; err != nil {
		writeError(w, r, store.Classify(err))
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// ActiveUser is the session verifier: the user must exist and be active.
func ActiveUser(db *gorm.DB) auth.UserVerifier {
	return func(ctx context.Context, uid uint) bool {
		var count int64
		err := db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", uid, true).Count(&count).Error
		return err == nil && count == 1
	}
}
