// Package watch monitors the working path for entity documents and
// re-validates them as they change, so a document being hand-edited is
// checked on every save.
package watch

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FrankSommer-64/issai-sub000/internal/document"
)

// ChangeKind describes the type of document change detected.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeRemoved
	ChangeAdded
)

// Change represents one validated document change.
type Change struct {
	Kind ChangeKind
	File string
	// Report holds the validation result; nil for removals.
	Report *document.Report
	// Err is the load error, when the document was unusable.
	Err error
}

// Watcher monitors a directory for entity document changes using fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan Change

	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// New creates a watcher for the given directory.
func New(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan Change, 16)
	return &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}, nil
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and channels. The consumer may already be gone;
// pending changes are drained so a blocked send cannot stall the loop's
// shutdown flush.
func (w *Watcher) Stop() {
	w.watcher.Close()
	for {
		select {
		case <-w.done:
			close(w.changes)
			return
		case <-w.changes:
		}
	}
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: editors fire several events per save.
	const debounce = 200 * time.Millisecond
	pending := make(map[string]fsnotify.Op)
	last := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				w.flush(pending)
				return
			}
			if !strings.HasSuffix(evt.Name, document.Ext) {
				continue
			}
			pending[evt.Name] |= evt.Op
			last[evt.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for file, op := range pending {
				if now.Sub(last[file]) < debounce {
					continue
				}
				w.emit(file, op)
				delete(pending, file)
				delete(last, file)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				w.flush(pending)
				return
			}
		}
	}
}

func (w *Watcher) flush(pending map[string]fsnotify.Op) {
	for file, op := range pending {
		w.emit(file, op)
	}
}

func (w *Watcher) emit(file string, op fsnotify.Op) {
	change := Change{File: filepath.Clean(file)}
	switch {
	case op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0:
		change.Kind = ChangeRemoved
	case op&fsnotify.Create != 0:
		change.Kind = ChangeAdded
	default:
		change.Kind = ChangeModified
	}
	if change.Kind != ChangeRemoved {
		_, report, err := document.Load(file)
		change.Report = report
		change.Err = err
	}
	w.changes <- change
}
