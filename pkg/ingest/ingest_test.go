package ingest

import (
	"context"
	"fmt"
	"testing"

	"xlsviz/pkg/access"
	"xlsviz/pkg/sheet"
	"xlsviz/pkg/sheet/sheettest"
	"xlsviz/pkg/store"
	"xlsviz/pkg/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userA = access.Identity{ID: "user-a", Role: access.RoleUser}
	userB = access.Identity{ID: "user-b", Role: access.RoleUser}
	admin = access.Identity{ID: "admin-1", Role: access.RoleAdmin}
)

func newService(t *testing.T) (*Service, *store.Files) {
	t.Helper()
	files := store.NewFiles(storetest.Open(t))
	return NewService(files), files
}

func upload(t *testing.T, svc *Service, owner access.Identity, data []byte) *Result {
	t.Helper()
	res, err := svc.Upload(context.Background(), owner, UploadInput{
		Filename: "people.xlsx", MimeType: sheet.MimeXLSX, Size: int64(len(data)), Data: data,
	})
	require.NoError(t, err)
	return res
}

func TestUploadSmallFile(t *testing.T) {
	svc, files := newService(t)
	res := upload(t, svc, userA, sheettest.People(t, 3))

	rec := res.Record
	assert.Equal(t, []string{"name", "age"}, rec.ColumnNames())
	assert.Equal(t, 3, rec.RowCount)
	assert.Len(t, rec.SampleRows(), 3)
	assert.Len(t, res.FullData, 3)
	assert.Equal(t, userA.ID, rec.OwnerID)

	stored, err := files.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ColumnNames(), stored.ColumnNames())
	assert.Len(t, stored.SampleRows(), 3)
}

func TestUploadLargeFileKeepsFirstHundred(t *testing.T) {
	svc, files := newService(t)
	res := upload(t, svc, userA, sheettest.People(t, 150))

	assert.Equal(t, 150, res.Record.RowCount)
	assert.Len(t, res.FullData, 150)

	stored, err := files.Get(context.Background(), res.Record.ID)
	require.NoError(t, err)
	sample := stored.SampleRows()
	require.Len(t, sample, 100)
	for i, r := range sample {
		assert.Equal(t, fmt.Sprintf("person%d", i+1), r["name"].Str())
	}
}

func TestUploadFailuresStoreNothing(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"missing buffer", nil, ErrMissingFile},
		{"header only", sheettest.Workbook(t, [][]any{{"name", "age"}}), sheet.ErrEmptyDocument},
		{"garbage", []byte("definitely not excel"), sheet.ErrMalformedDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, files := newService(t)
			_, err := svc.Upload(context.Background(), userA, UploadInput{Filename: "x.xlsx", Data: tt.data, Size: int64(len(tt.data))})
			assert.ErrorIs(t, err, tt.want)
			list, err := files.ListByOwner(context.Background(), userA.ID)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Upload(context.Background(), userA, UploadInput{Filename: "x.xlsx", Data: []byte("x"), Size: MaxUploadSize + 1})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestGetAndDeleteAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	res := upload(t, svc, userA, sheettest.People(t, 2))
	id := res.Record.ID

	_, err := svc.Get(ctx, id, userB)
	assert.ErrorIs(t, err, access.ErrAccessDenied)

	got, err := svc.Get(ctx, id, admin)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	assert.ErrorIs(t, svc.Delete(ctx, id, userB), access.ErrAccessDenied)
	_, err = svc.Get(ctx, id, userA)
	require.NoError(t, err, "denied delete must not remove the file")

	require.NoError(t, svc.Delete(ctx, id, userA))
	_, err = svc.Get(ctx, id, userA)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, id, admin), store.ErrNotFound)
}

func TestListIsOwnerScopedAndStable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	upload(t, svc, userA, sheettest.People(t, 1))
	upload(t, svc, userA, sheettest.People(t, 2))
	upload(t, svc, userB, sheettest.People(t, 3))

	first, err := svc.List(ctx, userA.ID)
	require.NoError(t, err)
	second, err := svc.List(ctx, userA.ID)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
}

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts("report.XLSX", "application/octet-stream"))
	assert.True(t, Accepts("report.xls", ""))
	assert.True(t, Accepts("blob", sheet.MimeXLS))
	assert.False(t, Accepts("notes.csv", "text/csv"))
}
