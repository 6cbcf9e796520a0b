package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"filemirror/feature/mirror"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// moveWindow is how long a rename waits for its matching create before it
// decays into a plain delete. The kernel emits both halves of a real rename
// back to back, so the window only needs to cover channel delivery; keeping
// it tight stops a later unrelated create from being mistaken for the
// missing half.
const moveWindow = 25 * time.Millisecond

const eventBuffer = 256

// Source implements the mirror engine's watch-source contract on top of
// fsnotify. One Source can watch any number of roots; each Watch call owns
// its own fsnotify watcher and goroutine.
type Source struct {
	log *zap.Logger
}

func NewSource(log *zap.Logger) *Source {
	return &Source{log: log}
}

// Watch starts watching root and every directory beneath it. The returned
// channel carries root-relative events and is closed when ctx is canceled.
func (s *Source) Watch(ctx context.Context, root string) (<-chan mirror.ChangeEvent, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &treeWatcher{
		root: root,
		fsw:  fsw,
		out:  make(chan mirror.ChangeEvent, eventBuffer),
		dirs: make(map[string]bool),
		log:  s.log.With(zap.String("root", root)),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run(ctx)
	return w.out, nil
}

// treeWatcher is the per-root state. Everything below runs on the single
// run goroutine, so no locking.
type treeWatcher struct {
	root string
	fsw  *fsnotify.Watcher
	out  chan mirror.ChangeEvent
	log  *zap.Logger

	// dirs remembers which relative paths are watched directories, so a
	// remove or rename of a directory can still be classified after the
	// entry is gone.
	dirs map[string]bool

	// pending holds a rename waiting for its create half.
	pending      *mirror.ChangeEvent
	pendingTimer *time.Timer
}

// addTree registers root and all subdirectories with fsnotify.
func (w *treeWatcher) addTree(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("watch walk error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !entry.IsDir() || path == dir {
			return nil
		}
		if watchErr := w.fsw.Add(path); watchErr != nil {
			w.log.Warn("failed to watch directory", zap.String("path", path), zap.Error(watchErr))
			return nil
		}
		if rel, ok := w.relative(path); ok {
			w.dirs[rel] = true
		}
		return nil
	})
}

func (w *treeWatcher) run(ctx context.Context) {
	defer close(w.out)
	defer w.fsw.Close()

	var expired <-chan time.Time
	for {
		if w.pendingTimer != nil {
			expired = w.pendingTimer.C
		} else {
			expired = nil
		}

		select {
		case <-ctx.Done():
			w.flushPending(ctx)
			return

		case <-expired:
			w.flushPending(ctx)

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.flushPending(ctx)
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.flushPending(ctx)
				return
			}
			w.log.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *treeWatcher) handle(ctx context.Context, event fsnotify.Event) {
	rel, ok := w.relative(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(event.Name)
		isDir := err == nil && info.IsDir()

		if w.pending != nil && w.pending.IsDir == isDir {
			// The create half of a rename. The entry keeps its kind
			// across the move.
			moved := *w.pending
			w.clearPending()
			moved.Kind = mirror.Moved
			moved.DestRelPath = rel
			if moved.IsDir {
				w.retarget(moved.RelPath, rel)
				if watchErr := w.addTree(event.Name); watchErr != nil {
					w.log.Warn("failed to watch moved directory",
						zap.String("path", event.Name), zap.Error(watchErr))
				}
			}
			w.emit(ctx, moved)
			return
		}

		// A create that cannot be the pending rename's other half settles
		// the rename as the delete it was.
		w.flushPending(ctx)

		if isDir {
			w.dirs[rel] = true
			if addErr := w.addTree(event.Name); addErr != nil {
				w.log.Warn("failed to watch new directory",
					zap.String("path", event.Name), zap.Error(addErr))
			}
		}
		w.emit(ctx, mirror.ChangeEvent{Kind: mirror.Created, RelPath: rel, IsDir: isDir})
		if isDir {
			// Entries written before the watch attached produced no
			// notifications of their own; sweep them up. Duplicates are
			// harmless downstream.
			w.emitExisting(ctx, event.Name)
		}

	case event.Has(fsnotify.Write):
		w.flushPending(ctx)
		w.emit(ctx, mirror.ChangeEvent{Kind: mirror.Modified, RelPath: rel, IsDir: w.dirs[rel]})

	case event.Has(fsnotify.Remove):
		w.flushPending(ctx)
		isDir := w.dirs[rel]
		if isDir {
			w.forget(rel)
		}
		w.emit(ctx, mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: rel, IsDir: isDir})

	case event.Has(fsnotify.Rename):
		// Hold the event open; the matching create names the destination.
		w.flushPending(ctx)
		w.pending = &mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: rel, IsDir: w.dirs[rel]}
		w.pendingTimer = time.NewTimer(moveWindow)
	}
}

// emitExisting emits create events for everything already inside a freshly
// attached directory.
func (w *treeWatcher) emitExisting(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		rel, ok := w.relative(path)
		if !ok {
			return nil
		}
		w.emit(ctx, mirror.ChangeEvent{Kind: mirror.Created, RelPath: rel, IsDir: entry.IsDir()})
		return nil
	})
}

// flushPending decays an unmatched rename into the delete it turned out
// to be.
func (w *treeWatcher) flushPending(ctx context.Context) {
	if w.pending == nil {
		return
	}
	ev := *w.pending
	w.clearPending()
	if ev.IsDir {
		w.forget(ev.RelPath)
	}
	w.emit(ctx, ev)
}

func (w *treeWatcher) clearPending() {
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
		w.pendingTimer = nil
	}
	w.pending = nil
}

// forget drops a directory and everything beneath it from the dir set.
func (w *treeWatcher) forget(rel string) {
	delete(w.dirs, rel)
	prefix := rel + "/"
	for p := range w.dirs {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			delete(w.dirs, p)
		}
	}
}

// retarget rewrites the dir set after a directory move.
func (w *treeWatcher) retarget(oldRel, newRel string) {
	delete(w.dirs, oldRel)
	w.dirs[newRel] = true
	prefix := oldRel + "/"
	for p := range w.dirs {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			delete(w.dirs, p)
			w.dirs[newRel+"/"+p[len(prefix):]] = true
		}
	}
}

func (w *treeWatcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	return mirror.NormalizeRel(filepath.ToSlash(rel))
}

// emit delivers ev to the consumer. The send blocks when the buffer is
// full; losing an event here would silently lose a mirror operation, so
// backpressure is preferred over dropping. Shutdown unblocks via ctx.
func (w *treeWatcher) emit(ctx context.Context, ev mirror.ChangeEvent) {
	select {
	case w.out <- ev:
	case <-ctx.Done():
	}
}
