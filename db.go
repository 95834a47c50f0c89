package main

import (
	"errors"
	"fmt"
	"log"

	"xlsviz/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openDB(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres database: %w", err)
	}
	return db, nil
}

// initDB migrates the schema (unless disabled) and seeds the master roles
// and, when configured, the admin account.
func initDB(db *gorm.DB, cfg Config) error {
	if cfg.AutoMigrate {
		// Migrate models individually so a failure on one doesn't block others
		for _, m := range models.All() {
			if err := db.AutoMigrate(m); err != nil {
				log.Printf("migration warning (%T): %v", m, err)
			}
		}
	}
	if err := seedRoles(db); err != nil {
		return err
	}
	return seedAdmin(db, cfg)
}

func seedRoles(db *gorm.DB) error {
	for _, r := range models.SeedRoles {
		r := r
		if err := db.Where("name = ?", r.Name).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	return nil
}

func seedAdmin(db *gorm.DB, cfg Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	var count int64
	db.Model(&models.User{}).Where("email = ?", cfg.AdminEmail).Count(&count)
	if count > 0 {
		return nil
	}
	_, err := RegisterUser(db, cfg.AdminEmail, "Administrator", cfg.AdminPassword, "admin")
	if err != nil && !errors.Is(err, ErrUserExists) {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Printf("Seeded admin user: email=%s", cfg.AdminEmail)
	return nil
}
