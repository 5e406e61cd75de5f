package services

import (
	"strings"
	"testing"

	"github.com/sunforge/solar-epc/internal/db"
	"github.com/sunforge/solar-epc/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated in-memory sqlite database with foreign keys enforced.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := d.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func mustClient(t *testing.T, d *gorm.DB, name string) *models.Client {
	t.Helper()
	c := &models.Client{Name: name, City: "Pune", State: "Maharashtra"}
	if err := d.Create(c).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

func mustInquiry(t *testing.T, d *gorm.DB, clientID uint) *models.Inquiry {
	t.Helper()
	i := &models.Inquiry{ClientID: clientID, CapacityKW: 5, SystemType: models.SystemOnGrid, Status: models.InquiryNew}
	if err := d.Create(i).Error; err != nil {
		t.Fatalf("create inquiry: %v", err)
	}
	return i
}

func mustUser(t *testing.T, d *gorm.DB, email string, active bool) *models.User {
	t.Helper()
	u := &models.User{Email: email, Password: "x", Active: active}
	if err := d.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }

func countRows(t *testing.T, d *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := d.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
