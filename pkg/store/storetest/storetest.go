// Package storetest opens throwaway databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"xlsviz/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated sqlite database living in the test's temp dir,
// with the master roles seeded.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, r := range models.SeedRoles {
		r := r
		if err := db.Where("name = ?", r.Name).FirstOrCreate(&r).Error; err != nil {
			t.Fatalf("seed role %s: %v", r.Name, err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given role name and returns it.
func CreateUser(t testing.TB, db *gorm.DB, email, role string) models.User {
	t.Helper()
	var r models.Role
	if err := db.Where("name = ?", role).First(&r).Error; err != nil {
		t.Fatalf("role %s: %v", role, err)
	}
	u := models.User{Email: email, Name: email, PasswordHash: []byte("x"), RoleID: &r.ID}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	u.Role = r
	return u
}
