// Package inbox delivers out-of-band extraction payloads: plain text files
// dropped into a directory are framed, parsed and merged into the graph.
// The inbox's only contract with the core is the text→payload path; what
// happens to the file afterwards (delete, move, quarantine) belongs to the
// configured disposer, not to the watcher.
package inbox

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/engine"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// Disposer decides a payload file's fate after processing. handled reports
// whether the file yielded a merge; err is the processing error, if any.
type Disposer func(path string, handled bool, err error)

// RemoveDisposer deletes every processed file, handled or not.
func RemoveDisposer(path string, handled bool, err error) {
	_ = os.Remove(path)
}

// Watcher watches a drop directory for payload files.
type Watcher struct {
	dir      string
	engine   *engine.Engine
	scope    types.Scope
	disposer Disposer
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher over dir. Payloads that carry no scope of
// their own merge under fallback. disposer may be nil, leaving files alone.
func NewWatcher(dir string, eng *engine.Engine, fallback types.Scope, disposer Disposer) *Watcher {
	return &Watcher{
		dir:      dir,
		engine:   eng,
		scope:    fallback,
		disposer: disposer,
		done:     make(chan struct{}),
	}
}

// Start drains any payload files already present, then watches for new
// ones. Call Stop to clean up.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}

	w.drainExisting()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop()
	log.Printf("inbox: watching %s for payload files", w.dir)
	return nil
}

// Stop shuts down the watcher. Safe to call after a failed Start, in which
// case there is no loop to wait for.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && payloadFile(evt.Name) {
				w.processFile(evt.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("inbox: watcher error: %v", err)
		}
	}
}

func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && payloadFile(entry.Name()) {
			w.processFile(filepath.Join(w.dir, entry.Name()))
		}
	}
}

func payloadFile(name string) bool {
	return strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".json")
}

func (w *Watcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}

	batch, err := w.engine.ApplyPayloadText(context.Background(), string(data), w.scope)
	switch {
	case err != nil:
		log.Printf("inbox: invalid payload file %s: %v", filepath.Base(path), err)
	case batch == nil:
		log.Printf("inbox: payload file %s carried nothing to apply", filepath.Base(path))
	default:
		log.Printf("inbox: merged %s: %d entities, %d relations",
			filepath.Base(path), len(batch.Entities), len(batch.Relations))
	}
	if w.disposer != nil {
		w.disposer(path, batch != nil, err)
	}
}
