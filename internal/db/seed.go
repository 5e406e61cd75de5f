package db

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sunforge/solar-epc/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Resources protected by the permission system.
var Resources = []string{
	"client", "inquiry", "item", "quotation", "document", "task", "token", "company", "user", "profile",
}

var actions = []string{"list", "view", "create", "update", "delete"}

// systemProfiles are created on first seed and re-synced on every seed.
var systemProfiles = []struct {
	Name        string
	Description string
	Permissions []string
}{
	{"admin", "Full system access", []string{"*:*"}},
	{"sales", "Clients, inquiries, quotations and share tokens", []string{
		"client:*", "inquiry:*", "quotation:*", "token:*", "document:*",
		"item:list", "item:view", "task:list", "task:view", "task:update", "company:view",
	}},
	{"engineer", "Site surveys, documents and assigned tasks", []string{
		"inquiry:list", "inquiry:view", "inquiry:update", "client:list", "client:view",
		"document:*", "task:list", "task:view", "task:update", "item:list", "item:view",
		"quotation:list", "quotation:view",
	}},
	{"viewer", "Read-only access", []string{
		"client:list", "client:view", "inquiry:list", "inquiry:view", "item:list", "item:view",
		"quotation:list", "quotation:view", "document:list", "document:view", "task:list", "task:view",
		"company:view",
	}},
}

// SeedOptions controls the bootstrap admin account.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// Seed idempotently creates permissions, system profiles, the company settings row
// and a bootstrap admin when no user exists yet.
func Seed(db *gorm.DB, opts SeedOptions) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := SeedPermissions(tx); err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}
		if err := SeedProfiles(tx); err != nil {
			return fmt.Errorf("seed profiles: %w", err)
		}
		if err := seedCompany(tx); err != nil {
			return fmt.Errorf("seed company: %w", err)
		}
		if err := seedAdmin(tx, opts); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		return nil
	})
}

// SeedPermissions creates every resource:action pair plus the wildcards.
func SeedPermissions(db *gorm.DB) error {
	perms := []models.Permission{{ResourceType: "*", Action: "*", Description: "Full system access"}}
	for _, res := range Resources {
		perms = append(perms, models.Permission{ResourceType: res, Action: "*", Description: "All " + res + " actions"})
		for _, act := range actions {
			perms = append(perms, models.Permission{ResourceType: res, Action: act, Description: act + " " + res})
		}
	}
	for _, p := range perms {
		perm := p
		if err := db.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).FirstOrCreate(&perm).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedProfiles creates the system profiles and replaces their permission sets.
func SeedProfiles(db *gorm.DB) error {
	for _, sp := range systemProfiles {
		var profile models.Profile
		err := db.Where("name = ?", sp.Name).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = models.Profile{Name: sp.Name, Description: sp.Description, IsSystem: true}
			err = db.Create(&profile).Error
		}
		if err != nil {
			return err
		}

		perms := make([]models.Permission, 0, len(sp.Permissions))
		for _, code := range sp.Permissions {
			resource, action, _ := strings.Cut(code, ":")
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", resource, action).First(&perm).Error; err != nil {
				return fmt.Errorf("permission %s: %w", code, err)
			}
			perms = append(perms, perm)
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}

func seedCompany(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.CompanySettings{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.Create(&models.CompanySettings{Name: "Solar EPC"}).Error
}

func seedAdmin(db *gorm.DB, opts SeedOptions) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		slog.Warn("no users and no ADMIN_PASSWORD set; skipping bootstrap admin")
		return nil
	}
	var admin models.Profile
	if err := db.Where("name = ?", "admin").First(&admin).Error; err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := models.User{
		Email:     strings.ToLower(strings.TrimSpace(opts.AdminEmail)),
		Name:      "Administrator",
		Password:  string(hash),
		Active:    true,
		ProfileID: &admin.ID,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	slog.Info("bootstrap admin created", "email", user.Email)
	return nil
}
