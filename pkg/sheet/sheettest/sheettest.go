// Package sheettest builds workbook fixtures in memory.
package sheettest

import (
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Workbook writes rows into the first sheet of a new .xlsx file and
// returns its bytes.
func Workbook(t testing.TB, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := r
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// People returns a name/age header followed by n rows person1, person2, ...
func People(t testing.TB, n int) []byte {
	t.Helper()
	rows := [][]any{{"name", "age"}}
	for i := 1; i <= n; i++ {
		rows = append(rows, []any{"person" + strconv.Itoa(i), 20 + i})
	}
	return Workbook(t, rows)
}
