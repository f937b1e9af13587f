// Package watch re-runs indexing when files under a project root change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"coderag/internal/walker"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a run.
const DefaultDebounce = 500 * time.Millisecond

// Watcher collapses bursts of file events into single callbacks.
type Watcher struct {
	root     string
	opts     walker.Options
	debounce time.Duration
	log      *slog.Logger
	fsw      *fsnotify.Watcher
}

// New creates a watcher for root. Events for paths the scan options would
// not yield are dropped.
func New(root string, opts walker.Options, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{root: absRoot, opts: opts, debounce: debounce, log: log, fsw: fsw}, nil
}

// Run watches until ctx is done, calling onChange from this goroutine once
// the tree has been quiet for the debounce period. Callbacks never overlap.
// An onChange error is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer w.fsw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.log.Info("watching", "root", w.root, "dirs", len(w.fsw.WatchList()))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.log.Warn("watch new directory", "path", ev.Name, "err", err)
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("change", "op", ev.Op.String(), "path", ev.Name)
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)

		case <-timer.C:
			if err := onChange(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.log.Error("reindex failed", "err", err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}
	if w.opts.Matches(rel) {
		return true
	}
	// A directory that was moved or deleted takes its files with it.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return slices.Contains(w.fsw.WatchList(), ev.Name)
	}
	if ev.Has(fsnotify.Create) {
		info, err := os.Stat(ev.Name)
		return err == nil && info.IsDir() && !w.opts.DirIgnored(rel)
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root {
			if rel, err := filepath.Rel(w.root, p); err == nil && w.opts.DirIgnored(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Debug("watch directory", "path", p, "err", err)
		}
		return nil
	})
}
