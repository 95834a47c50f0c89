package sheet

import "errors"

var (
	// ErrMalformedDocument is returned when the upload is not a readable workbook.
	ErrMalformedDocument = errors.New("malformed spreadsheet document")
	// ErrEmptyDocument is returned when the first sheet has no data rows.
	ErrEmptyDocument = errors.New("excel file is empty")
)
