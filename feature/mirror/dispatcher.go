package mirror

import (
	"context"
	"path"
	"path/filepath"

	"filemirror/core/remote"

	"go.uber.org/zap"
)

// Dispatcher is the state machine that turns one settled event into the
// concrete operation set: mkdir, copy, rename, remove, or pointer-file
// generation. Remote operations go through a remote.Session, which applies
// the retry-once-on-expired-credentials rule.
//
// Dispatch runs on a worker goroutine; every read or mutation of the
// PathState is marshaled through the loop, and mutations happen only after
// an operation's outcome is known.
type Dispatcher struct {
	mapping *Mapping
	session *remote.Session // nil when the mapping has no remote destination
	pointer *PointerMirror  // nil when the mapping has no pointer tree
	tracker *PathState
	loop    *Loop
	probe   *StabilityProbe
	stats   *Stats
	log     *zap.Logger
}

// NewDispatcher wires a dispatcher for one mapping.
func NewDispatcher(mapping *Mapping, session *remote.Session, tracker *PathState, loop *Loop, stats *Stats, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		mapping: mapping,
		tracker: tracker,
		loop:    loop,
		probe:   NewStabilityProbe(mapping.Options.PollInterval, mapping.Options.StableTime),
		stats:   stats,
		log:     log.With(zap.String("mapping", mapping.Name)),
	}
	if mapping.RemoteEnabled() {
		d.session = session
	}
	if mapping.PointerEnabled() {
		d.pointer = NewPointerMirror(mapping, d.log)
	}
	return d
}

// Dispatch processes one settled event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev ChangeEvent) {
	d.stats.addDispatched()
	switch ev.Kind {
	case Created, Modified:
		d.handleUpsert(ctx, ev)
	case Deleted:
		d.handleDelete(ctx, ev)
	case Moved:
		d.handleMove(ctx, ev)
	}
}

// contains reads tracker membership on the loop.
func (d *Dispatcher) contains(rel string) bool {
	var ok bool
	d.loop.Call(func() { ok = d.tracker.Contains(rel) })
	return ok
}

func (d *Dispatcher) handleUpsert(ctx context.Context, ev ChangeEvent) {
	rel := ev.RelPath

	if !ev.IsDir && d.mapping.Options.IsIgnored(rel) {
		d.log.Debug("ignored extension, dropping event", zap.String("path", rel))
		d.stats.addSkipped()
		return
	}

	// Subtitle files get copied on modification even when already tracked:
	// extractors rewrite them in place after the initial mirror.
	if ev.Kind == Modified && !ev.IsDir && d.session != nil && d.mapping.Options.IsSubtitle(rel) {
		if err := d.copyWithRefresh(ctx, rel); err != nil {
			d.log.Error("subtitle copy failed", zap.String("path", rel), zap.Error(err))
			d.stats.addFailed()
			return
		}
		d.loop.Submit(func() { d.tracker.Mark(rel) })
		d.stats.addSucceeded()
		return
	}

	// Idempotence against duplicate or replayed notifications. Directory
	// creations pass through: remote mkdir is create-if-absent.
	if d.contains(rel) && !(ev.IsDir && ev.Kind == Created) {
		d.log.Warn("path already accounted for, skipping", zap.String("path", rel))
		d.stats.addSkipped()
		return
	}

	if ev.IsDir {
		d.upsertDir(ctx, rel)
		return
	}
	d.upsertFile(ctx, rel)
}

func (d *Dispatcher) upsertDir(ctx context.Context, rel string) {
	ok := true

	if d.session != nil {
		dst := d.mapping.RemoteDestinationPath(rel)
		err := d.session.Do(ctx, "mkdir", func(ctx context.Context) error {
			return d.session.Client().MakeDir(ctx, dst)
		})
		if err != nil {
			d.log.Error("remote mkdir failed", zap.String("path", dst), zap.Error(err))
			ok = false
		} else {
			d.log.Info("remote directory created", zap.String("path", dst))
		}
	}

	if d.pointer != nil {
		if err := d.pointer.EnsureDir(rel); err != nil {
			d.log.Error("target mkdir failed", zap.String("path", rel), zap.Error(err))
			ok = false
		}
	}

	if ok {
		d.loop.Submit(func() { d.tracker.Mark(rel) })
		d.stats.addSucceeded()
	} else {
		d.stats.addFailed()
	}
}

func (d *Dispatcher) upsertFile(ctx context.Context, rel string) {
	local := filepath.Join(d.mapping.LocalRoot, filepath.FromSlash(rel))
	if !d.probe.AwaitStable(ctx, local) {
		d.log.Warn("file vanished or never settled, abandoning",
			zap.String("path", local))
		d.stats.addSkipped()
		return
	}

	ok := true

	if d.session != nil {
		if err := d.copyWithRefresh(ctx, rel); err != nil {
			d.log.Error("remote copy failed", zap.String("path", rel), zap.Error(err))
			ok = false
		}
	}

	if d.pointer != nil {
		if err := d.pointer.Apply(rel, false); err != nil {
			d.log.Error("pointer mirror failed", zap.String("path", rel), zap.Error(err))
			ok = false
		}
	}

	if ok {
		d.loop.Submit(func() { d.tracker.Mark(rel) })
		d.stats.addSucceeded()
	} else {
		d.stats.addFailed()
	}
}

// copyWithRefresh refreshes the backend's view of the remote source
// directory, then copies the source projection into the destination
// directory. The refresh guarantees the backend has indexed the new file
// before the copy references it.
func (d *Dispatcher) copyWithRefresh(ctx context.Context, rel string) error {
	src := d.mapping.RemoteSourcePath(rel)
	dstDir := path.Dir(d.mapping.RemoteDestinationPath(rel))

	err := d.session.Do(ctx, "copy", func(ctx context.Context) error {
		if _, err := d.session.Client().RefreshListing(ctx, path.Dir(src)); err != nil {
			return err
		}
		return d.session.Client().Copy(ctx, src, dstDir)
	})
	if err == nil {
		d.log.Info("remote copy succeeded",
			zap.String("source", src),
			zap.String("destination", dstDir))
	}
	return err
}

func (d *Dispatcher) handleDelete(ctx context.Context, ev ChangeEvent) {
	rel := ev.RelPath

	if !ev.IsDir && d.mapping.Options.IsIgnored(rel) {
		d.log.Debug("ignored extension, dropping delete", zap.String("path", rel))
		d.stats.addSkipped()
		return
	}
	if !d.mapping.Options.EnableCleanup {
		d.log.Warn("delete propagation disabled, ignoring", zap.String("path", rel))
		d.stats.addSkipped()
		return
	}
	if !d.contains(rel) {
		// Never delete something the engine never created or observed.
		d.log.Warn("delete for unaccounted path, ignoring", zap.String("path", rel))
		d.stats.addSkipped()
		return
	}

	ok := true

	if d.session != nil {
		dst := d.mapping.RemoteDestinationPath(rel)
		err := d.session.Do(ctx, "remove", func(ctx context.Context) error {
			if ev.IsDir {
				return d.session.Client().RemoveDir(ctx, dst)
			}
			return d.session.Client().Remove(ctx, dst)
		})
		if err != nil {
			d.log.Error("remote remove failed", zap.String("path", dst), zap.Error(err))
			ok = false
		} else {
			d.log.Info("remote path removed", zap.String("path", dst))
		}
	}

	if d.pointer != nil {
		if err := d.pointer.RemoveTarget(rel, ev.IsDir); err != nil {
			d.log.Error("target remove failed", zap.String("path", rel), zap.Error(err))
			ok = false
		}
	}

	// Unmark even on failure: the local path is gone, and keeping it marked
	// would wedge every later event for the same name.
	d.loop.Submit(func() { d.tracker.Unmark(rel) })

	if ok {
		d.stats.addSucceeded()
	} else {
		d.stats.addFailed()
	}
}

func (d *Dispatcher) handleMove(ctx context.Context, ev ChangeEvent) {
	src, dst := ev.RelPath, ev.DestRelPath

	// Provisional marker renamed into a subtitle: the file just became
	// real. Copy it instead of renaming a remote counterpart that was
	// never mirrored.
	if d.session != nil && !ev.IsDir &&
		d.mapping.Options.IsIgnored(src) && d.mapping.Options.IsSubtitle(dst) {
		if err := d.copyWithRefresh(ctx, dst); err != nil {
			d.log.Error("subtitle copy failed", zap.String("path", dst), zap.Error(err))
			d.stats.addFailed()
			return
		}
		d.loop.Submit(func() {
			d.tracker.Unmark(src)
			d.tracker.Mark(dst)
		})
		d.stats.addSucceeded()
		return
	}

	var srcKnown, dstKnown bool
	d.loop.Call(func() {
		srcKnown = d.tracker.Contains(src)
		dstKnown = d.tracker.Contains(dst)
	})

	switch {
	case srcKnown && !dstKnown:
		d.moveOut(ctx, ev, src)
	case !srcKnown && dstKnown:
		d.moveIn(ctx, dst)
	case srcKnown && dstKnown:
		d.renameInPlace(ctx, src, dst)
	default:
		// Neither endpoint was ever tracked; guessing a mirror action here
		// would act on state the engine has no record of.
		d.log.Warn("move with no tracked endpoint, ignoring",
			zap.String("source", src),
			zap.String("destination", dst))
		d.stats.addSkipped()
	}
}

// moveOut handles a path leaving the mirrored set.
func (d *Dispatcher) moveOut(ctx context.Context, ev ChangeEvent, src string) {
	ok := true

	if d.mapping.Options.EnableCleanup {
		if d.session != nil {
			dst := d.mapping.RemoteDestinationPath(src)
			err := d.session.Do(ctx, "remove", func(ctx context.Context) error {
				if ev.IsDir {
					return d.session.Client().RemoveDir(ctx, dst)
				}
				return d.session.Client().Remove(ctx, dst)
			})
			if err != nil {
				d.log.Error("remote remove after move-out failed",
					zap.String("path", dst), zap.Error(err))
				ok = false
			} else {
				d.log.Info("remote path removed after move-out", zap.String("path", dst))
			}
		}
		if d.pointer != nil {
			if err := d.pointer.RemoveTarget(src, ev.IsDir); err != nil {
				d.log.Error("target remove after move-out failed",
					zap.String("path", src), zap.Error(err))
				ok = false
			}
		}
	}

	d.loop.Submit(func() { d.tracker.Unmark(src) })

	if ok {
		d.stats.addSucceeded()
	} else {
		d.stats.addFailed()
	}
}

// moveIn handles a path entering the mirrored set: the backend already sees
// it under the source projection, so a rename moves it into place instead of
// a copy.
func (d *Dispatcher) moveIn(ctx context.Context, dst string) {
	if d.session == nil {
		d.stats.addSkipped()
		return
	}

	from := d.mapping.RemoteSourcePath(dst)
	to := d.mapping.RemoteDestinationPath(dst)
	err := d.session.Do(ctx, "rename", func(ctx context.Context) error {
		return d.session.Client().Rename(ctx, from, to)
	})
	if err != nil {
		d.log.Error("remote rename failed",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
		d.stats.addFailed()
		return
	}

	d.log.Info("remote rename succeeded", zap.String("from", from), zap.String("to", to))
	d.loop.Submit(func() { d.tracker.Mark(dst) })
	d.stats.addSucceeded()
}

// renameInPlace handles a rename within the mirrored set.
func (d *Dispatcher) renameInPlace(ctx context.Context, src, dst string) {
	ok := true

	if d.session != nil {
		from := d.mapping.RemoteDestinationPath(src)
		to := d.mapping.RemoteDestinationPath(dst)
		err := d.session.Do(ctx, "rename", func(ctx context.Context) error {
			return d.session.Client().Rename(ctx, from, to)
		})
		if err != nil {
			d.log.Error("remote rename failed",
				zap.String("from", from), zap.String("to", to), zap.Error(err))
			ok = false
		} else {
			d.log.Info("remote rename succeeded",
				zap.String("from", from), zap.String("to", to))
		}
	}

	if ok {
		d.loop.Submit(func() {
			d.tracker.Unmark(src)
			d.tracker.Mark(dst)
		})
		d.stats.addSucceeded()
	} else {
		d.stats.addFailed()
	}
}
