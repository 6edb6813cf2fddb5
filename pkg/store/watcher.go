package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher observes the data directory and reports which books changed
// on disk. Events are debounced so a burst of writes (an import, a
// renumber) collapses into one notification per book.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func(book string)
	debounce time.Duration
}

func NewWatcher(s *Store, onChange func(book string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		store:    s,
		watcher:  fsw,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
	}
	if err := w.addRecursive(s.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Run blocks until ctx is cancelled, dispatching debounced change
// notifications. Temp files from atomic writes are ignored.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".tmp-") {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						log.Warn("watch new directory", "path", event.Name, "err", err)
					}
				}
			}
			if book := w.bookOf(event.Name); book != "" {
				pending[book] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				log.Warn("watcher error", "err", err)
			}
		case <-fire:
			for book := range pending {
				w.onChange(book)
			}
			clear(pending)
			fire = nil
		}
	}
}

// bookOf maps an event path to its top-level book directory, or ""
// for paths directly under the data root.
func (w *Watcher) bookOf(path string) string {
	rel, err := filepath.Rel(w.store.Root(), path)
	if err != nil || rel == "." {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
