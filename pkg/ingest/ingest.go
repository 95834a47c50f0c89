// Package ingest turns uploaded workbooks into file records and serves
// owner-scoped reads and deletes of those records.
package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"xlsviz/models"
	"xlsviz/pkg/access"
	"xlsviz/pkg/sheet"

	"gorm.io/datatypes"
)

// MaxUploadSize bounds the body of a single upload.
const MaxUploadSize = 10 << 20

var (
	ErrMissingFile  = errors.New("no file uploaded")
	ErrNotExcel     = errors.New("only Excel files (.xls, .xlsx) are allowed")
	ErrFileTooLarge = errors.New("file too large (max 10MB)")
)

// FileStore is the persistence the service needs.
type FileStore interface {
	Create(ctx context.Context, rec *models.FileRecord) error
	Get(ctx context.Context, id string) (*models.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.FileRecord, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	files FileStore
}

func NewService(files FileStore) *Service {
	return &Service{files: files}
}

// UploadInput carries the upload as received at the boundary.
type UploadInput struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// Result is a stored record plus every parsed row of the upload.
type Result struct {
	Record   *models.FileRecord
	FullData []sheet.Row
}

// Accepts reports whether an upload looks like an Excel workbook by mime
// type or extension.
func Accepts(filename, mimeType string) bool {
	if mimeType == sheet.MimeXLS || mimeType == sheet.MimeXLSX {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xlsx":
		return true
	}
	return false
}

// Upload parses the workbook, keeps the first sheet.SampleSize rows and
// stores the record under owner. Nothing is stored if parsing fails.
func (s *Service) Upload(ctx context.Context, owner access.Identity, in UploadInput) (*Result, error) {
	if len(in.Data) == 0 {
		return nil, ErrMissingFile
	}
	if in.Size > MaxUploadSize || len(in.Data) > MaxUploadSize {
		return nil, ErrFileTooLarge
	}
	doc, err := sheet.Parse(in.Data)
	if err != nil {
		return nil, err
	}
	cols := sheet.InferColumns(doc)
	size := in.Size
	if size <= 0 {
		size = int64(len(in.Data))
	}
	rec := &models.FileRecord{
		OwnerID:      owner.ID,
		OriginalName: in.Filename,
		MimeType:     in.MimeType,
		Size:         size,
		Columns:      datatypes.NewJSONType(cols),
		RowCount:     len(doc.Rows),
		Sample:       datatypes.NewJSONType(sheet.Sample(doc.Rows, cols, sheet.SampleSize)),
	}
	if err := s.files.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &Result{Record: rec, FullData: doc.Rows}, nil
}

// List returns the owner's files newest first, without samples.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.FileRecord, error) {
	return s.files.ListByOwner(ctx, ownerID)
}

// Get returns the record if actor owns it or is an admin.
func (s *Service) Get(ctx context.Context, id string, actor access.Identity) (*models.FileRecord, error) {
	rec, err := s.files.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(rec.OwnerID, actor); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete hard-deletes the record if actor owns it or is an admin.
func (s *Service) Delete(ctx context.Context, id string, actor access.Identity) error {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return err
	}
	return s.files.Delete(ctx, id)
}
