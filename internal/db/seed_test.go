package db

import (
	"testing"

	"github.com/sunforge/solar-epc/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := d.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestMigrate_CreatesCoreTables(t *testing.T) {
	d := openTestDB(t)
	for _, table := range []string{"clients", "inquiries", "items", "documents", "tasks", "company_settings", "profile_permissions"} {
		if !d.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}

func TestSeedIdempotent(t *testing.T) {
	d := openTestDB(t)
	opts := SeedOptions{AdminEmail: " Admin@Example.com ", AdminPassword: "changeme"}
	if err := Seed(d, opts); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	var permCount int64
	d.Model(&models.Permission{}).Count(&permCount)
	if err := Seed(d, opts); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var permCount2, profileCount, userCount, companyCount int64
	d.Model(&models.Permission{}).Count(&permCount2)
	d.Model(&models.Profile{}).Count(&profileCount)
	d.Model(&models.User{}).Count(&userCount)
	d.Model(&models.CompanySettings{}).Count(&companyCount)

	wantPerms := int64(1 + len(Resources)*(1+len(actions)))
	if permCount != wantPerms || permCount2 != wantPerms {
		t.Fatalf("expected %d permissions got %d then %d", wantPerms, permCount, permCount2)
	}
	if profileCount != int64(len(systemProfiles)) {
		t.Fatalf("expected %d profiles got %d", len(systemProfiles), profileCount)
	}
	if userCount != 1 {
		t.Fatalf("expected 1 bootstrap admin got %d", userCount)
	}
	if companyCount != 1 {
		t.Fatalf("expected 1 company row got %d", companyCount)
	}

	var admin models.User
	if err := d.Preload("Profile.Permissions").Where("email = ?", "admin@example.com").First(&admin).Error; err != nil {
		t.Fatalf("load admin: %v", err)
	}
	if admin.Profile == nil || admin.Profile.Name != "admin" {
		t.Fatalf("admin should have admin profile, got %+v", admin.Profile)
	}
	if len(admin.Profile.Permissions) != 1 || admin.Profile.Permissions[0].Code() != "*:*" {
		t.Fatalf("admin profile should hold *:* only, got %+v", admin.Profile.Permissions)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("changeme")) != nil {
		t.Fatal("admin password not hashed with bcrypt")
	}
}

func TestSeed_SkipsAdminWithoutPassword(t *testing.T) {
	d := openTestDB(t)
	if err := Seed(d, SeedOptions{AdminEmail: "admin@example.com"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var userCount int64
	d.Model(&models.User{}).Count(&userCount)
	if userCount != 0 {
		t.Fatalf("expected no users got %d", userCount)
	}
}

func TestSeedProfiles_SalesPermissions(t *testing.T) {
	d := openTestDB(t)
	if err := Seed(d, SeedOptions{}); err != nil {
		t.Fatal(err)
	}
	var sales models.Profile
	if err := d.Preload("Permissions").Where("name = ?", "sales").First(&sales).Error; err != nil {
		t.Fatal(err)
	}
	codes := map[string]bool{}
	for _, p := range sales.Permissions {
		codes[p.Code()] = true
	}
	for _, want := range []string{"quotation:*", "token:*", "client:*"} {
		if !codes[want] {
			t.Errorf("sales profile missing %s", want)
		}
	}
	if codes["*:*"] {
		t.Error("sales profile must not be superadmin")
	}
}
