// Package analysis creates and lists chart configurations over uploaded files.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"xlsviz/models"
	"xlsviz/pkg/access"

	"gorm.io/datatypes"
)

var (
	ErrMissingField     = errors.New("fileId, xAxis, yAxis, and chartType are required")
	ErrInvalidChartType = errors.New("invalid chart type")
	ErrInvalidAxis      = errors.New("selected axes must exist in file columns")
)

// FileGetter loads a file record by id, returning store.ErrNotFound when absent.
type FileGetter interface {
	Get(ctx context.Context, id string) (*models.FileRecord, error)
}

// Repository persists analysis configurations.
type Repository interface {
	Create(ctx context.Context, a *models.AnalysisConfig) error
	ListByFile(ctx context.Context, fileID string) ([]models.AnalysisConfig, error)
}

type Service struct {
	files FileGetter
	repo  Repository
}

func NewService(files FileGetter, repo Repository) *Service {
	return &Service{files: files, repo: repo}
}

// CreateInput is a request to save a chart configuration.
type CreateInput struct {
	FileID    string
	Creator   access.Identity
	XAxis     string
	YAxis     string
	ChartType string
	Options   map[string]any
}

// ValidChartType reports whether ct is one of models.ChartTypes.
func ValidChartType(ct string) bool {
	return slices.Contains(models.ChartTypes, ct)
}

// Create validates the request against the referenced file and stores it.
// Authorization is decided before the payload is validated, so a caller who
// may not touch the file gets access.ErrAccessDenied whatever the body.
// Nothing is written unless every check passes.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.AnalysisConfig, error) {
	if in.FileID == "" {
		return nil, ErrMissingField
	}
	file, err := s.files.Get(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(file.OwnerID, in.Creator); err != nil {
		return nil, err
	}
	if in.XAxis == "" || in.YAxis == "" || in.ChartType == "" {
		return nil, ErrMissingField
	}
	if !ValidChartType(in.ChartType) {
		return nil, ErrInvalidChartType
	}
	if !file.HasColumn(in.XAxis) || !file.HasColumn(in.YAxis) {
		return nil, ErrInvalidAxis
	}
	opts := in.Options
	if opts == nil {
		opts = map[string]any{}
	}
	a := &models.AnalysisConfig{
		FileID:    file.ID,
		UserID:    in.Creator.ID,
		XAxis:     in.XAxis,
		YAxis:     in.YAxis,
		ChartType: in.ChartType,
		Options:   datatypes.NewJSONType(opts),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	return a, nil
}

// ListByFile returns the file's analyses newest first once the actor is
// allowed to see the file.
func (s *Service) ListByFile(ctx context.Context, fileID string, actor access.Identity) ([]models.AnalysisConfig, error) {
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(file.OwnerID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListByFile(ctx, file.ID)
}
