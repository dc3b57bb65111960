// Package watcher keeps an index live against an editing workspace: it
// recursively watches a root directory with fsnotify, debounces bursts of
// filesystem events into a single coalesced batch per path, and re-indexes
// the affected files through a Pipeline (SPEC_FULL §4.5). Grounded on
// standardbeagle-lci's internal/indexing.FileWatcher/eventDebouncer — the
// same recursive-add-on-create, path-keyed-debounce, flush-by-event-kind
// shape, adapted to drive Pipeline.IndexFiles instead of a generic scanner.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	canopyrt "github.com/rocket-tycoon/rocketindex/internal/runtime"
	"github.com/rocket-tycoon/rocketindex/internal/pipeline"
)

// EventType classifies a debounced filesystem change.
type EventType int

const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
)

// DefaultDebounce is used when Watcher is constructed with debounce <= 0.
const DefaultDebounce = 200 * time.Millisecond

// maxPending bounds how many distinct paths can sit in the debouncer between
// flushes. A workspace-wide operation (branch switch, formatter run) can
// touch thousands of files inside one debounce window; past this bound we
// stop tracking individual paths and instead flag a full rescan, trading
// precision for a bounded memory footprint.
const maxPending = 4096

// Watcher recursively watches root and re-indexes changed files through p.
type Watcher struct {
	root     string
	pipeline *pipeline.Pipeline
	fsw      *fsnotify.Watcher
	debounce *debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onBatch func(Result)
}

// Result summarizes one debounced flush.
type Result struct {
	Created, Modified, Removed []string
	RescanForced               bool
	Err                        error
}

// New creates a Watcher over root. debounce <= 0 uses DefaultDebounce.
func New(root string, p *pipeline.Pipeline, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: %w", err)
	}
	w := &Watcher{root: absRoot, pipeline: p, fsw: fsw}
	w.debounce = newDebouncer(debounce, w.flush)
	return w, nil
}

// OnBatch registers a callback invoked after every debounced flush,
// including ones the caller should treat as a forced full rescan.
func (w *Watcher) OnBatch(fn func(Result)) { w.onBatch = fn }

// Start begins watching root and returns once the initial recursive
// watch-add pass completes. Events are processed on background goroutines
// until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	if err := w.addWatches(w.root); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	w.wg.Add(2)
	go w.processEvents()
	go w.debounce.run(w.ctx, &w.wg)
	return nil
}

// Stop halts watching and waits for background goroutines to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// addWatches walks root adding an fsnotify watch to every directory.
// filepath.Walk does not follow symlinks, so a symlinked directory is
// neither descended into nor watched.
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			if visited[real] {
				return filepath.SkipDir
			}
			visited[real] = true
		}
		if !info.IsDir() {
			return nil
		}
		if shouldSkipDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			log.Printf("watcher: add %s: %v", path, err)
		}
		return nil
	})
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__", "target", "dist", "build", "bin", "obj":
		return true
	default:
		return false
	}
}

// processEvents drains fsnotify's channels onto the debouncer until ctx is
// canceled.
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	info, statErr := os.Stat(ev.Name)
	if statErr != nil {
		if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.debounce.add(ev.Name, EventRemove)
		}
		return
	}
	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 && !shouldSkipDir(info.Name()) {
			if err := w.fsw.Add(ev.Name); err != nil {
				log.Printf("watcher: add %s: %v", ev.Name, err)
			}
		}
		return
	}
	if _, ok := canopyrt.LanguageForFile(ev.Name); !ok {
		return
	}
	switch {
	case ev.Op&fsnotify.Create != 0:
		w.debounce.add(ev.Name, EventCreate)
	case ev.Op&fsnotify.Write != 0:
		w.debounce.add(ev.Name, EventWrite)
	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports a rename as the old name disappearing; the new
		// name (if any) arrives as its own Create event. Treat the old
		// name as removed.
		w.debounce.add(ev.Name, EventRemove)
	}
}

// flush re-indexes a debounced batch through the Pipeline, grouping by
// event kind the way the debouncer's source does: removals first to free
// identifiers, then writes, then creates.
func (w *Watcher) flush(events map[string]EventType, forcedRescan bool) {
	res := Result{RescanForced: forcedRescan}
	if forcedRescan {
		if _, err := w.pipeline.Build(w.ctx, w.root); err != nil {
			res.Err = err
		}
		if w.onBatch != nil {
			w.onBatch(res)
		}
		return
	}

	var removes, writes, creates []string
	for path, t := range events {
		switch t {
		case EventRemove:
			removes = append(removes, path)
		case EventCreate:
			creates = append(creates, path)
		default:
			writes = append(writes, path)
		}
	}

	for _, path := range removes {
		if err := w.deleteFile(path); err != nil {
			res.Err = err
			continue
		}
		res.Removed = append(res.Removed, path)
	}
	if len(writes) > 0 {
		if _, err := w.pipeline.IndexFiles(w.ctx, writes); err != nil {
			res.Err = err
		} else {
			res.Modified = append(res.Modified, writes...)
		}
	}
	if len(creates) > 0 {
		if _, err := w.pipeline.IndexFiles(w.ctx, creates); err != nil {
			res.Err = err
		} else {
			res.Created = append(res.Created, creates...)
		}
	}

	if w.onBatch != nil {
		w.onBatch(res)
	}
}

func (w *Watcher) deleteFile(path string) error {
	f, err := w.pipeline.Store().FileByPath(path)
	if err != nil || f == nil {
		return nil // already gone or never indexed
	}
	if err := w.pipeline.Store().DeleteFileData(f.ID); err != nil {
		return err
	}
	return w.pipeline.Store().DeleteFile(f.ID)
}

// debouncer batches events by path, keeping only the latest event type per
// path, and flushes once no new event arrives for its debounce window.
type debouncer struct {
	mu       sync.Mutex
	events   map[string]EventType
	debounce time.Duration
	timer    *time.Timer
	flushFn  func(events map[string]EventType, forcedRescan bool)
}

func newDebouncer(debounce time.Duration, flushFn func(map[string]EventType, bool)) *debouncer {
	return &debouncer{
		events:   make(map[string]EventType),
		debounce: debounce,
		flushFn:  flushFn,
	}
}

func (d *debouncer) add(path string, t EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.events) >= maxPending {
		if d.timer != nil {
			d.timer.Stop()
		}
		d.events = make(map[string]EventType)
		go d.flushFn(nil, true)
		return
	}

	d.events[path] = t
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	events := d.events
	d.events = make(map[string]EventType)
	d.mu.Unlock()

	if len(events) == 0 {
		return
	}
	d.flushFn(events, false)
}

// run waits for ctx cancellation. Events pending at shutdown are dropped
// rather than flushed: the index is being torn down, and flushing here
// could race a concurrent Store.Close.
func (d *debouncer) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	<-ctx.Done()
}
