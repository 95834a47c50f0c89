// Package store persists file records and analysis configurations with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xlsviz/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Files is the file record store. Records are created once, read, and hard deleted.
type Files struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFiles(db *gorm.DB) *Files {
	return &Files{db: db, now: time.Now}
}

// Create assigns an id and upload time and inserts rec.
func (s *Files) Create(ctx context.Context, rec *models.FileRecord) error {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create file record: %w", err)
	}
	return nil
}

func (s *Files) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	var rec models.FileRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file record %s: %w", id, err)
	}
	return &rec, nil
}

// ListByOwner returns the owner's files newest first without their sample rows.
func (s *Files) ListByOwner(ctx context.Context, ownerID string) ([]models.FileRecord, error) {
	var recs []models.FileRecord
	err := s.db.WithContext(ctx).
		Omit("sample_data").
		Where("owner_id = ?", ownerID).
		Order("uploaded_at desc").Order("id desc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	return recs, nil
}

// Delete removes the record. Analyses referencing it are left untouched.
func (s *Files) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FileRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete file record %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Analyses is the analysis configuration store.
type Analyses struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalyses(db *gorm.DB) *Analyses {
	return &Analyses{db: db, now: time.Now}
}

func (s *Analyses) Create(ctx context.Context, a *models.AnalysisConfig) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

// ListByFile returns the file's analyses newest first.
func (s *Analyses) ListByFile(ctx context.Context, fileID string) ([]models.AnalysisConfig, error) {
	out := []models.AnalysisConfig{}
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at desc").Order("id desc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}
