// Package sheet turns uploaded spreadsheet workbooks into rows keyed by
// column name, and derives the column list and bounded sample kept for them.
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

const (
	MimeXLS  = "application/vnd.ms-excel"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeOLE  = "application/x-ole-storage"

	emptyHeader = "__EMPTY"
)

// Document is the first sheet of a workbook: the header row and every
// non-blank data row below it.
type Document struct {
	Headers []string
	Rows    []Row
}

// Parse decodes a .xlsx or legacy .xls workbook and returns its first sheet.
// Cell values keep the decoder's formatted text.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	var grid [][]string
	var err error
	if isLegacyWorkbook(mimetype.Detect(data)) {
		grid, err = readXLS(data)
	} else {
		grid, err = readXLSX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	doc := fromGrid(grid)
	if len(doc.Rows) == 0 {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}

func isLegacyWorkbook(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(MimeXLS) || m.Is(mimeOLE) {
			return true
		}
	}
	return false
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) (grid [][]string, err error) {
	// the BIFF decoder trusts the container, so broken chains are caught first
	if err := checkCompound(data); err != nil {
		return nil, err
	}
	// the BIFF decoder panics on some truncated inputs
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("decode xls: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("first sheet unreadable")
	}
	if ws.MaxRow == 0 {
		// one row at most, which can only be the header
		return nil, nil
	}
	// limited to the first sheet's rows, so later sheets are never read
	return wb.ReadAllCells(int(ws.MaxRow) + 1), nil
}

// checkCompound opens data as an OLE compound file and reads its workbook
// stream end to end.
func checkCompound(data []byte) error {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "Workbook" && entry.Name != "Book" {
			continue
		}
		if _, err := io.Copy(io.Discard, entry); err != nil {
			return fmt.Errorf("read %s stream: %w", entry.Name, err)
		}
		return nil
	}
	return fmt.Errorf("no workbook stream")
}

// trimGrid drops the blank rows above the table and the blank columns to
// its left, so the first remaining row is the header.
func trimGrid(grid [][]string) [][]string {
	for len(grid) > 0 && blankRow(grid[0]) {
		grid = grid[1:]
	}
	left := -1
	for _, r := range grid {
		for j, cell := range r {
			if cell != "" {
				if left < 0 || j < left {
					left = j
				}
				break
			}
		}
	}
	if left <= 0 {
		return grid
	}
	out := make([][]string, len(grid))
	for i, r := range grid {
		if len(r) > left {
			out[i] = r[left:]
		}
	}
	return out
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// fromGrid treats the first non-blank row as headers and converts the rows
// below it to Row values. Empty cells are left out and blank rows are skipped.
func fromGrid(grid [][]string) *Document {
	doc := &Document{}
	grid = trimGrid(grid)
	if len(grid) == 0 {
		return doc
	}
	width := 0
	for _, r := range grid {
		if len(r) > width {
			width = len(r)
		}
	}
	doc.Headers = headerNames(grid[0], width)
	for _, cells := range grid[1:] {
		row := Row{}
		for j, cell := range cells {
			if cell == "" {
				continue
			}
			row[doc.Headers[j]] = String(cell)
		}
		if len(row) == 0 {
			continue
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

// headerNames names every column of the grid. Blank headers become
// __EMPTY, __EMPTY_1, ... and repeated names get a numeric suffix.
func headerNames(raw []string, width int) []string {
	out := make([]string, width)
	used := make(map[string]bool, width)
	suffix := make(map[string]int)
	for j := 0; j < width; j++ {
		base := ""
		if j < len(raw) {
			base = raw[j]
		}
		if base == "" {
			base = emptyHeader
		}
		name := base
		for used[name] {
			suffix[base]++
			name = base + "_" + strconv.Itoa(suffix[base])
		}
		used[name] = true
		out[j] = name
	}
	return out
}
