package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"xlsviz/models"
	"xlsviz/pkg/access"
	"xlsviz/pkg/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	names []string
	fail  map[string]bool
}

func (r *recorder) Upload(_ context.Context, owner access.Identity, in ingest.UploadInput) (*ingest.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[in.Filename] {
		return nil, errors.New("bad workbook")
	}
	r.names = append(r.names, in.Filename)
	return &ingest.Result{Record: &models.FileRecord{ID: "id-" + in.Filename, OwnerID: owner.ID}}, nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestWatcherIngestsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "early.xlsx"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("b"), 0o644))

	rec := &recorder{fail: map[string]bool{"broken.xlsx": true}}
	w := &Watcher{Dir: dir, Owner: access.Identity{ID: "u1", Role: access.RoleUser}, Uploader: rec, Settle: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.xls"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xlsx"), []byte("d"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, failedDir, "broken.xlsx"))
		return len(rec.seen()) == 2 && err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{"early.xlsx", "late.xls"}, rec.seen())
	assert.FileExists(t, filepath.Join(dir, processedDir, "early.xlsx"))
	assert.FileExists(t, filepath.Join(dir, processedDir, "late.xls"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

// slowUploader takes a while per file and gives up when ctx ends.
type slowUploader struct {
	delay time.Duration
	mu    sync.Mutex
	done  int
}

func (u *slowUploader) Upload(ctx context.Context, owner access.Identity, in ingest.UploadInput) (*ingest.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(u.delay):
	}
	u.mu.Lock()
	u.done++
	u.mu.Unlock()
	return &ingest.Result{Record: &models.FileRecord{ID: "id-" + in.Filename, OwnerID: owner.ID}}, nil
}

func (u *slowUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.done
}

func TestWatcherShutdownLeavesPendingFiles(t *testing.T) {
	dir := t.TempDir()
	const total = 20
	for i := 0; i < total; i++ {
		name := filepath.Join(dir, "f"+strconv.Itoa(i)+".xlsx")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
	}

	up := &slowUploader{delay: 30 * time.Millisecond}
	w := &Watcher{Dir: dir, Owner: access.Identity{ID: "u1", Role: access.RoleUser}, Uploader: up, Workers: 1}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	require.Eventually(t, func() bool { return up.count() >= 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	failed, err := os.ReadDir(filepath.Join(dir, failedDir))
	require.NoError(t, err)
	assert.Empty(t, failed, "interrupted uploads are not failures")

	processed, err := os.ReadDir(filepath.Join(dir, processedDir))
	require.NoError(t, err)
	left := listSpreadsheets(dir)
	assert.Equal(t, up.count(), len(processed))
	assert.Equal(t, total, len(processed)+len(left))
	assert.NotEmpty(t, left)
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, isSpreadsheet("a.xlsx"))
	assert.True(t, isSpreadsheet("A.XLS"))
	assert.False(t, isSpreadsheet("~$a.xlsx"))
	assert.False(t, isSpreadsheet("a.csv"))
}
