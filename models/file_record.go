package models

import (
	"time"

	"xlsviz/pkg/sheet"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileRecord describes one uploaded spreadsheet. Only the first
// sheet.SampleSize rows are kept; RowCount is the size of the whole sheet.
// Records are written once and never updated.
type FileRecord struct {
	ID           string                          `gorm:"primaryKey;size:36"`
	OwnerID      string                          `gorm:"size:36;index;not null"`
	OriginalName string                          `gorm:"size:255;not null"`
	MimeType     string                          `gorm:"size:128;not null"`
	Size         int64                           `gorm:"not null"`
	Columns      datatypes.JSONType[[]string]    `gorm:"not null"`
	RowCount     int                             `gorm:"not null"`
	Sample       datatypes.JSONType[[]sheet.Row] `gorm:"column:sample_data"`
	UploadedAt   time.Time                       `gorm:"index;not null"`
}

func (f *FileRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// ColumnNames returns the file's column list.
func (f FileRecord) ColumnNames() []string { return f.Columns.Data() }

// SampleRows returns the retained sample rows.
func (f FileRecord) SampleRows() []sheet.Row { return f.Sample.Data() }

// HasColumn reports whether name is one of the file's columns.
func (f FileRecord) HasColumn(name string) bool {
	for _, c := range f.Columns.Data() {
		if c == name {
			return true
		}
	}
	return false
}
