// Package watch ingests spreadsheets dropped into a directory on behalf of
// one owner. Ingested files are moved to processed/, rejected ones to failed/.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"xlsviz/pkg/access"
	"xlsviz/pkg/ingest"
	"xlsviz/pkg/sheet"

	"github.com/fsnotify/fsnotify"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Uploader stores one workbook for owner.
type Uploader interface {
	Upload(ctx context.Context, owner access.Identity, in ingest.UploadInput) (*ingest.Result, error)
}

type Watcher struct {
	Dir      string
	Owner    access.Identity
	Uploader Uploader
	Workers  int
	// Settle is how long a file must go without events before it is read.
	Settle time.Duration
}

// Run ingests the files already in Dir and then every new one until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", w.Dir)

	workers := w.Workers
	if workers < 1 {
		workers = 1
	}
	settle := w.Settle
	if settle <= 0 {
		settle = 300 * time.Millisecond
	}

	fileCh := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				w.ingestFile(ctx, name)
			}
		}()
	}
	defer wg.Wait()
	defer close(fileCh)

	for _, name := range listSpreadsheets(w.Dir) {
		fileCh <- name
	}

	// simple debounce map of pending files
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isSpreadsheet(name) {
				continue
			}
			pending[name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > settle { // stable
					fileCh <- name
					delete(pending, name)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// ingestFile leaves the file where it is when ctx ends before it is stored,
// so the next run picks it up again.
func (w *Watcher) ingestFile(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	src := filepath.Join(w.Dir, name)
	data, err := os.ReadFile(src)
	if err != nil {
		// already moved by an earlier event for the same file
		if !os.IsNotExist(err) {
			log.Printf("watch: read %s: %v", name, err)
		}
		return
	}
	res, err := w.Uploader.Upload(ctx, w.Owner, ingest.UploadInput{
		Filename: name,
		MimeType: mimeFor(name),
		Size:     int64(len(data)),
		Data:     data,
	})
	if err != nil && ctx.Err() != nil {
		log.Printf("watch: %s left in place: %v", name, ctx.Err())
		return
	}
	dest := processedDir
	if err != nil {
		log.Printf("watch: %s rejected: %v", name, err)
		dest = failedDir
	} else {
		log.Printf("watch: %s ingested as %s (%d rows)", name, res.Record.ID, res.Record.RowCount)
	}
	if err := os.Rename(src, filepath.Join(w.Dir, dest, name)); err != nil {
		log.Printf("watch: move %s to %s: %v", name, dest, err)
	}
}

func listSpreadsheets(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSpreadsheet(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSpreadsheet(name string) bool {
	// skip office lock files such as ~$report.xlsx
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	return ingest.Accepts(name, "")
}

func mimeFor(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return sheet.MimeXLS
	}
	return sheet.MimeXLSX
}
