package store

import (
	"context"
	"testing"
	"time"

	"xlsviz/models"
	"xlsviz/pkg/sheet"
	"xlsviz/pkg/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newRecord(owner, name string) *models.FileRecord {
	return &models.FileRecord{
		OwnerID:      owner,
		OriginalName: name,
		MimeType:     sheet.MimeXLSX,
		Size:         42,
		Columns:      datatypes.NewJSONType([]string{"name", "age"}),
		RowCount:     1,
		Sample:       datatypes.NewJSONType([]sheet.Row{{"name": sheet.String("ann"), "age": sheet.String("31")}}),
	}
}

func TestFilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	files := NewFiles(storetest.Open(t))

	rec := newRecord("owner-1", "people.xlsx")
	require.NoError(t, files.Create(ctx, rec))
	require.NotEmpty(t, rec.ID)
	require.False(t, rec.UploadedAt.IsZero())

	got, err := files.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, got.ColumnNames())
	assert.Equal(t, "ann", got.SampleRows()[0]["name"].Str())
	assert.True(t, got.HasColumn("age"))
	assert.False(t, got.HasColumn("missing"))

	_, err = files.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesListNewestFirstWithoutSample(t *testing.T) {
	ctx := context.Background()
	files := NewFiles(storetest.Open(t))
	files.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	first := newRecord("owner-1", "a.xlsx")
	second := newRecord("owner-1", "b.xlsx")
	other := newRecord("owner-2", "c.xlsx")
	for _, r := range []*models.FileRecord{first, second, other} {
		require.NoError(t, files.Create(ctx, r))
	}

	list, err := files.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Empty(t, list[0].SampleRows())
	assert.Equal(t, []string{"name", "age"}, list[0].ColumnNames())

	again, err := files.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, list, again)
}

func TestFilesDeleteLeavesAnalyses(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	files := NewFiles(db)
	analyses := NewAnalyses(db)

	rec := newRecord("owner-1", "a.xlsx")
	require.NoError(t, files.Create(ctx, rec))
	require.NoError(t, analyses.Create(ctx, &models.AnalysisConfig{
		FileID: rec.ID, UserID: "owner-1", XAxis: "name", YAxis: "age", ChartType: "bar",
		Options: datatypes.NewJSONType(map[string]any{}),
	}))

	require.NoError(t, files.Delete(ctx, rec.ID))
	assert.ErrorIs(t, files.Delete(ctx, rec.ID), ErrNotFound)

	left, err := analyses.ListByFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestAnalysesListNewestFirst(t *testing.T) {
	ctx := context.Background()
	analyses := NewAnalyses(storetest.Open(t))
	analyses.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	empty, err := analyses.ListByFile(ctx, "f1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	var ids []string
	for _, ct := range []string{"bar", "line", "pie"} {
		a := &models.AnalysisConfig{
			FileID: "f1", UserID: "u1", XAxis: "x", YAxis: "y", ChartType: ct,
			Options: datatypes.NewJSONType(map[string]any{"color": "red"}),
		}
		require.NoError(t, analyses.Create(ctx, a))
		ids = append(ids, a.ID)
	}
	list, err := analyses.ListByFile(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, "pie", list[0].ChartType)
	assert.Equal(t, "red", list[0].Options.Data()["color"])
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	db := storetest.Open(t)
	ann := storetest.CreateUser(t, db, "ann@example.com", "user")
	bob := storetest.CreateUser(t, db, "bob@example.com", "admin")
	files := NewFiles(db)
	require.NoError(t, files.Create(ctx, newRecord(ann.ID, "a.xlsx")))
	require.NoError(t, files.Create(ctx, newRecord(ann.ID, "b.xlsx")))
	require.NoError(t, files.Create(ctx, newRecord(bob.ID, "c.xlsx")))

	stats := NewStats(db)
	u, err := stats.Usage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, u.TotalFiles)
	assert.EqualValues(t, 0, u.TotalAnalyses)
	assert.EqualValues(t, 2, u.TotalUsers)
	require.Len(t, u.FilesPerUser, 2)
	assert.Equal(t, ann.ID, u.FilesPerUser[0].UserID)
	assert.EqualValues(t, 2, u.FilesPerUser[0].FileCount)
	assert.Equal(t, "ann@example.com", u.FilesPerUser[0].UserEmail)

	users, err := stats.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
