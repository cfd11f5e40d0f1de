// Package watch regenerates documentation when the documentation source tree changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docs"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/manifest"
)

// RunFunc performs one regeneration.
type RunFunc func(ctx context.Context) error

// Options tune the watcher.
type Options struct {
	Debounce time.Duration
	Suffixes []string
}

// Watcher debounces filesystem events under a docs tree and runs one
// regeneration at a time. Events that touch only doc sources whose content
// fingerprint is unchanged are dropped; any other file (conf.py, images,
// templates) always triggers a run.
type Watcher struct {
	docsDir   string
	outputDir string
	opts      Options
	run       RunFunc

	mu    sync.Mutex
	timer *time.Timer
	force bool
	last  *manifest.Manifest

	requests chan struct{}
	ready    chan struct{}
	runs     int
}

// New creates a watcher for docsDir. outputDir is excluded from watching.
func New(docsDir, outputDir string, opts Options, run RunFunc) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = config.DefaultWatchDebounce
	}
	if len(opts.Suffixes) == 0 {
		opts.Suffixes = config.DefaultSuffixes()
	}
	abs := func(p string) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	}
	return &Watcher{
		docsDir:   abs(docsDir),
		outputDir: abs(outputDir),
		opts:      opts,
		run:       run,
		requests:  make(chan struct{}, 1),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the tree is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Runs returns how many regenerations were started.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Run watches until ctx is canceled. Regeneration failures are logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.addDirsRecursive(fw, w.docsDir); err != nil {
		return err
	}
	if prev, err := manifest.Load(w.outputDir); err == nil {
		w.last = prev
	}
	slog.Info("Watching documentation sources", logfields.Path(w.docsDir), logfields.Duration(w.opts.Debounce))
	close(w.ready)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.worker(ctx)
	}()
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if w.ignored(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !w.skipDir(ev.Name) {
			_ = w.addDirsRecursive(fw, ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.trigger(!w.isSource(ev.Name))
}

// trigger (re)starts the debounce timer. force survives until the next run.
func (w *Watcher) trigger(force bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.force = w.force || force
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.requests <- struct{}{}:
		default:
		}
	})
}

// worker serializes runs. A request arriving during a run is kept in the
// buffered channel and handled right after it.
func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.requests:
			w.mu.Lock()
			force := w.force
			w.force = false
			w.mu.Unlock()
			w.process(ctx, force)
		}
	}
}

func (w *Watcher) process(ctx context.Context, force bool) {
	current, err := manifest.Build(w.docsDir, docs.Options{Suffixes: w.opts.Suffixes, Exclude: []string{w.outputDir}})
	if err != nil {
		slog.Warn("Failed to fingerprint documentation sources", logfields.Error(err))
		force = true
	}
	changes := manifest.Diff(w.last, current)
	if !force && changes.Empty() {
		slog.Debug("No documentation source changed; skipping regeneration")
		return
	}

	w.mu.Lock()
	w.runs++
	w.mu.Unlock()
	slog.Info("Change detected; regenerating documentation",
		slog.Int("added", len(changes.Added)),
		slog.Int("changed", len(changes.Changed)),
		slog.Int("removed", len(changes.Removed)))

	if err := w.run(ctx); err != nil {
		slog.Warn("Regeneration failed", logfields.Error(err))
		return
	}
	if current != nil {
		w.last = current
	}
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// assetDirs are skipped by source discovery but feed the generated site.
var assetDirs = []string{"_static", "_templates"}

func (w *Watcher) skipDir(path string) bool {
	name := filepath.Base(path)
	if slices.Contains(assetDirs, name) {
		return w.ignored(path)
	}
	return w.ignored(path) || slices.Contains(docs.DefaultSkipDirs, name)
}

func (w *Watcher) isSource(path string) bool {
	return slices.Contains(w.opts.Suffixes, strings.ToLower(filepath.Ext(path)))
}

// ignored reports hidden entries, editor temp files and anything in the output directory.
func (w *Watcher) ignored(path string) bool {
	if path == w.outputDir || strings.HasPrefix(path, w.outputDir+string(filepath.Separator)) {
		return true
	}
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."), strings.HasPrefix(base, "#"):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case base == "4913": // vim writability check file
		return true
	}
	return false
}
