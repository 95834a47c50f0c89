package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Chart types an analysis may use.
var ChartTypes = []string{"bar", "line", "pie", "scatter", "3d-bar"}

// AnalysisConfig is a saved chart configuration over two columns of a file.
// FileID is not a foreign key: deleting the file leaves the config behind.
type AnalysisConfig struct {
	ID        string                             `gorm:"primaryKey;size:36" json:"id"`
	FileID    string                             `gorm:"size:36;index;not null" json:"fileId"`
	UserID    string                             `gorm:"size:36;index;not null" json:"userId"`
	XAxis     string                             `gorm:"size:255;not null" json:"xAxis"`
	YAxis     string                             `gorm:"size:255;not null" json:"yAxis"`
	ChartType string                             `gorm:"size:16;not null" json:"chartType"`
	Options   datatypes.JSONType[map[string]any] `gorm:"not null" json:"options"`
	CreatedAt time.Time                          `gorm:"index" json:"createdAt"`
}

func (a *AnalysisConfig) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// All lists every model in migration order; roles first so users can reference them.
func All() []any {
	return []any{&Role{}, &User{}, &RefreshToken{}, &FileRecord{}, &AnalysisConfig{}}
}
