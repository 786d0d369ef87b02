package app

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch re-runs the incremental ingestion whenever matching files under the
// data directory change. Bursts of events are coalesced. It returns when ctx
// is cancelled.
func (a *App) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := watchTree(w, a.cfg.DataDir); err != nil {
		return err
	}
	log.Printf("👀 Watching %s for changes. Ctrl+C to exit.", a.cfg.DataDir)

	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopped watching")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if rel, ok := a.loader.Rel(ev.Name); ok && !hidden(rel) && ev.Op.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := watchTree(w, ev.Name); err != nil {
					log.Printf("⚠️  %v", err)
				}
			}
			if a.relevantEvent(ev) {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  Watch error: %v", err)

		case <-timer.C:
			report, err := a.Ingest(ctx, IngestOptions{})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("❌ Ingestion failed: %v", err)
				continue
			}
			if len(report.Failures) > 0 {
				log.Printf("⚠️  Ingestion finished with %d failures", len(report.Failures))
			}
		}
	}
}

// relevantEvent reports whether ev may change the index. Directory events
// count when files below them are indexed or could be.
func (a *App) relevantEvent(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	rel, ok := a.loader.Rel(ev.Name)
	if !ok || rel == "." || hidden(rel) {
		return false
	}

	if ev.Op.Has(fsnotify.Create) && isDir(ev.Name) {
		return true
	}
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		if _, indexed := a.metadata.Files[rel]; indexed {
			return true
		}
		for src := range a.metadata.Files {
			if strings.HasPrefix(src, rel+"/") {
				return true
			}
		}
	}
	return a.loader.Match(rel)
}

// watchTree adds dir and every non-hidden directory below it.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// hidden reports whether any element of the slash or OS path starts with a
// dot.
func hidden(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
