package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"xlsviz/models"
	"xlsviz/pkg/sheet"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

type fakeLLM struct {
	text string
	err  error
	user string
}

func (f *fakeLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.user = user
	return f.text, f.err
}

func summary() Summary {
	rows := make([]sheet.Row, 8)
	for i := range rows {
		rows[i] = sheet.Row{"name": sheet.String("x")}
	}
	rec := &models.FileRecord{
		OriginalName: "people.xlsx",
		Columns:      datatypes.NewJSONType([]string{"name", "age"}),
		RowCount:     8,
		Sample:       datatypes.NewJSONType(rows),
	}
	return Summarize(rec)
}

func TestSummarizeTakesFiveRows(t *testing.T) {
	s := summary()
	assert.Len(t, s.SampleData, 5)
	assert.Equal(t, 8, s.RowCount)
}

func TestGenerateWithoutModel(t *testing.T) {
	got := NewService(nil).Generate(context.Background(), summary())
	assert.Equal(t, SourceNoKey, got.Source)
	assert.Equal(t, Fallback(summary()), got.Text)
	assert.True(t, strings.HasPrefix(got.Text, "This dataset contains 8 rows with 2 columns: name, age."))
}

func TestGenerateModelFailureFallsBack(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	got := NewService(llm).Generate(context.Background(), summary())
	assert.Equal(t, SourceModelFailure, got.Source)
	assert.Equal(t, Fallback(summary()), got.Text)
}

func TestGenerateWithModel(t *testing.T) {
	llm := &fakeLLM{text: "looks like people"}
	got := NewService(llm).Generate(context.Background(), summary())
	assert.Equal(t, Insight{Text: "looks like people", Source: SourceModel}, got)
	assert.Contains(t, llm.user, "Columns: name, age")
	assert.Contains(t, llm.user, "Total Rows: 8")
}
