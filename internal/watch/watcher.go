// Package watch ingests files dropped into a folder.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler is called once per file after its writes settle.
type Handler func(ctx context.Context, path string) error

// Watcher reports new or rewritten files of a directory.
type Watcher struct {
	fs     *fsnotify.Watcher
	exts   map[string]bool
	settle time.Duration
	log    *slog.Logger
}

// New creates a watcher. An empty exts accepts every file; settle is how long
// a file must stay quiet before it is handed over.
func New(exts []string, settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return &Watcher{fs: w, exts: set, settle: settle, log: logger.With("component", "watch")}, nil
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}

// Run watches dir until ctx ends, calling handle for each settled file in turn.
// Handler errors are logged and do not stop the watch.
func (w *Watcher) Run(ctx context.Context, dir string, handle Handler) error {
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ready := make(chan string, 100)
	d := newDebouncer(w.settle, func(path string) {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.accepts(event.Name) {
				d.schedule(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		case path := <-ready:
			if err := handle(ctx, path); err != nil {
				w.log.Error("ingest dropped file failed", "path", path, "error", err)
			}
		}
	}
}

// debouncer fires once per path after settle of quiet. A timer that has
// already fired when the path is rescheduled is superseded, not reset.
type debouncer struct {
	settle time.Duration
	fire   func(path string)

	mu     sync.Mutex
	timers map[string]*debounceTimer
	seq    uint64
}

type debounceTimer struct {
	t   *time.Timer
	gen uint64
}

func newDebouncer(settle time.Duration, fire func(string)) *debouncer {
	return &debouncer{settle: settle, fire: fire, timers: make(map[string]*debounceTimer)}
}

func (d *debouncer) schedule(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.arm(path)
}

// arm needs d.mu held.
func (d *debouncer) arm(path string) {
	if old, ok := d.timers[path]; ok {
		old.t.Stop()
	}
	d.seq++
	gen := d.seq
	d.timers[path] = &debounceTimer{gen: gen, t: time.AfterFunc(d.settle, func() {
		d.mu.Lock()
		cur, ok := d.timers[path]
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p, t := range d.timers {
		t.t.Stop()
		delete(d.timers, p)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
