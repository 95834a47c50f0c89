// Package insights produces a short written analysis of an uploaded file,
// using a chat completion model when one is configured.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"xlsviz/models"
	"xlsviz/pkg/sheet"
)

const (
	SourceModel        = "openai"
	SourceNoKey        = "mock (no API key configured)"
	SourceModelFailure = "mock (OpenAI API error)"

	summaryRows = 5
)

// Summary is what gets described to the model.
type Summary struct {
	FileName   string      `json:"fileName"`
	Columns    []string    `json:"columns"`
	RowCount   int         `json:"rowCount"`
	SampleData []sheet.Row `json:"sampleData"`
}

// Insight is the generated text and where it came from.
type Insight struct {
	Text   string `json:"insights"`
	Source string `json:"source"`
}

// Completer answers a system + user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Service struct {
	llm Completer
}

// NewService returns a Service; llm may be nil, in which case every
// insight is generated locally.
func NewService(llm Completer) *Service {
	return &Service{llm: llm}
}

// Summarize builds the summary for rec from its first few sample rows.
func Summarize(rec *models.FileRecord) Summary {
	rows := rec.SampleRows()
	if len(rows) > summaryRows {
		rows = rows[:summaryRows]
	}
	return Summary{FileName: rec.OriginalName, Columns: rec.ColumnNames(), RowCount: rec.RowCount, SampleData: rows}
}

// Generate never fails: model errors fall back to a local description.
func (s *Service) Generate(ctx context.Context, sum Summary) Insight {
	if s.llm == nil {
		return Insight{Text: Fallback(sum), Source: SourceNoKey}
	}
	text, err := s.llm.Complete(ctx, systemPrompt, userPrompt(sum))
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("insights: model call failed for %q: %v", sum.FileName, err)
		return Insight{Text: Fallback(sum), Source: SourceModelFailure}
	}
	return Insight{Text: text, Source: SourceModel}
}

const systemPrompt = "You are a data analyst that provides concise insights about Excel data."

func userPrompt(sum Summary) string {
	sample, _ := json.MarshalIndent(sum.SampleData, "", "  ")
	return fmt.Sprintf(`Analyze this Excel data and provide insights:

File: %s
Columns: %s
Total Rows: %d
Sample Data: %s

Provide a brief analysis (2-3 paragraphs) about:
1. What type of data this appears to be
2. Key patterns or observations
3. Potential use cases for visualization`, sum.FileName, strings.Join(sum.Columns, ", "), sum.RowCount, sample)
}

// Fallback is the deterministic description used without a model.
func Fallback(sum Summary) string {
	return fmt.Sprintf(`This dataset contains %d rows with %d columns: %s.

Based on the column names and sample data, this appears to be a structured dataset that could benefit from various types of visualizations. Consider using bar charts for categorical comparisons, line charts for trends over time, or scatter plots to identify correlations between numeric variables.

To get AI-powered insights, configure the OPENAI_API_KEY environment variable in the backend.`,
		sum.RowCount, len(sum.Columns), strings.Join(sum.Columns, ", "))
}
