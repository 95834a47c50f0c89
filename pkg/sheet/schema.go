package sheet

// SampleSize is the number of leading rows kept for a file after ingestion.
const SampleSize = 100

// InferColumns returns the keys of the first data row in sheet order.
// Later rows are never consulted.
func InferColumns(doc *Document) []string {
	if doc == nil || len(doc.Rows) == 0 {
		return nil
	}
	first := doc.Rows[0]
	cols := make([]string, 0, len(first))
	for _, h := range doc.Headers {
		if _, ok := first[h]; ok {
			cols = append(cols, h)
		}
	}
	return cols
}

// Sample returns the first limit rows projected onto columns. Keys that are
// not columns are dropped; columns missing from a row stay absent.
func Sample(rows []Row, columns []string, limit int) []Row {
	n := len(rows)
	if limit >= 0 && n > limit {
		n = limit
	}
	out := make([]Row, 0, n)
	for _, r := range rows[:n] {
		out = append(out, Project(r, columns))
	}
	return out
}

// Project copies the cells of r whose key is one of columns.
func Project(r Row, columns []string) Row {
	p := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok && !v.IsAbsent() {
			p[c] = v
		}
	}
	return p
}
