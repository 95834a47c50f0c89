package store

import (
	"context"
	"fmt"

	"xlsviz/models"

	"gorm.io/gorm"
)

// OwnerFiles is the number of files uploaded by one user.
type OwnerFiles struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	FileCount int64  `json:"fileCount"`
}

// Usage is the admin overview of the whole installation.
type Usage struct {
	TotalFiles    int64        `json:"totalFiles"`
	TotalAnalyses int64        `json:"totalAnalyses"`
	TotalUsers    int64        `json:"totalUsers"`
	FilesPerUser  []OwnerFiles `json:"filesPerUser"`
}

// Stats answers admin queries across all owners.
type Stats struct {
	db *gorm.DB
}

func NewStats(db *gorm.DB) *Stats { return &Stats{db: db} }

func (s *Stats) Usage(ctx context.Context) (*Usage, error) {
	db := s.db.WithContext(ctx)
	u := &Usage{FilesPerUser: []OwnerFiles{}}
	if err := db.Model(&models.FileRecord{}).Count(&u.TotalFiles).Error; err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	if err := db.Model(&models.AnalysisConfig{}).Count(&u.TotalAnalyses).Error; err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}
	if err := db.Model(&models.User{}).Count(&u.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	// owners that no longer exist are left out, as with an inner join
	err := db.Model(&models.FileRecord{}).
		Select("users.id AS user_id, users.name AS user_name, users.email AS user_email, count(*) AS file_count").
		Joins("JOIN users ON users.id = file_records.owner_id").
		Group("users.id, users.name, users.email").
		Order("file_count desc").
		Scan(&u.FilesPerUser).Error
	if err != nil {
		return nil, fmt.Errorf("files per user: %w", err)
	}
	return u, nil
}

// Users lists every account newest first with the role preloaded.
func (s *Stats) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Role").Order("created_at desc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
