package mirror

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"

	"filemirror/core/remote"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WatchSource produces the raw change-event stream for one root. The
// returned channel must be closed when ctx is canceled.
type WatchSource interface {
	Watch(ctx context.Context, root string) (<-chan ChangeEvent, error)
}

// MappingStatus is the status-server view of one running mapping.
type MappingStatus struct {
	Name           string        `json:"name"`
	LocalRoot      string        `json:"local_root"`
	RemoteEnabled  bool          `json:"remote_enabled"`
	PointerEnabled bool          `json:"pointer_enabled"`
	TrackedPaths   int           `json:"tracked_paths"`
	Stats          StatsSnapshot `json:"stats"`
}

// Driver wires watch source, debounce scheduler, stability detector and
// dispatcher together for every configured mapping, runs the optional
// initial full sync, and owns the single scheduling loop.
type Driver struct {
	mappings []*Mapping
	session  *remote.Session
	source   WatchSource
	log      *zap.Logger

	loop *Loop

	mu      sync.Mutex
	runners []*mappingRunner
}

// mappingRunner bundles one mapping's per-path machinery.
type mappingRunner struct {
	mapping    *Mapping
	tracker    *PathState
	scheduler  *Scheduler
	dispatcher *Dispatcher
	stats      *Stats
}

// NewDriver creates the driver. session may be nil when no mapping mirrors
// to a remote backend.
func NewDriver(mappings []*Mapping, session *remote.Session, source WatchSource, log *zap.Logger) *Driver {
	return &Driver{
		mappings: mappings,
		session:  session,
		source:   source,
		log:      log,
	}
}

// Run starts every valid mapping and blocks until ctx is canceled and the
// scheduling loop has drained. A mapping that fails validation, login or
// watch attachment is logged and skipped; the others continue.
func (d *Driver) Run(ctx context.Context) error {
	d.loop = NewLoop(256)

	// The loop outlives ctx just long enough to cancel pending tasks.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.loop.Run(loopCtx)
		return nil
	})

	remoteOK := false
	if d.session != nil {
		if err := d.session.Login(ctx); err != nil {
			d.log.Error("remote login failed, remote mappings disabled", zap.Error(err))
		} else {
			d.log.Info("remote login succeeded")
			remoteOK = true
		}
	}

	for _, m := range d.mappings {
		m := m
		if err := m.Validate(); err != nil {
			d.log.Error("invalid mapping skipped", zap.Error(err))
			continue
		}
		if m.RemoteEnabled() && !remoteOK && !m.PointerEnabled() {
			d.log.Error("mapping skipped: remote unavailable", zap.String("mapping", m.Name))
			continue
		}

		r := &mappingRunner{
			mapping: m,
			tracker: NewPathState(),
			stats:   &Stats{},
		}
		r.scheduler = NewScheduler(ctx, d.loop, m.DebounceDelay())
		session := d.session
		if !remoteOK {
			session = nil
		}
		r.dispatcher = NewDispatcher(m, session, r.tracker, d.loop, r.stats, d.log)

		// Seed path state (and optionally full-sync the pointer tree)
		// before the watcher attaches, so pre-existing paths are never
		// re-processed as new.
		seed := d.initialScan(r)
		d.loop.Call(func() { r.tracker.Seed(seed) })
		d.log.Info("mapping seeded",
			zap.String("mapping", m.Name),
			zap.Int("paths", len(seed)))

		events, err := d.source.Watch(ctx, m.LocalRoot)
		if err != nil {
			d.log.Error("watch attach failed, mapping skipped",
				zap.String("mapping", m.Name), zap.Error(err))
			continue
		}

		d.mu.Lock()
		d.runners = append(d.runners, r)
		d.mu.Unlock()
		g.Go(func() error {
			d.forward(r, events)
			return nil
		})
		d.log.Info("mapping watching",
			zap.String("mapping", m.Name),
			zap.String("root", m.LocalRoot))
	}

	// Shutdown: drop pending debounce tasks without executing them, then
	// stop the loop. In-flight dispatches are abandoned at their next loop
	// interaction.
	g.Go(func() error {
		<-gctx.Done()
		d.loop.Call(func() {
			for _, r := range d.runners {
				r.scheduler.CancelAll()
			}
		})
		stopLoop()
		return nil
	})

	return g.Wait()
}

// initialScan walks the mapping's local root, optionally mirroring every
// entry into the pointer tree (full sync), and returns the visited relative
// paths for seeding.
func (d *Driver) initialScan(r *mappingRunner) []string {
	m := r.mapping
	fullSync := m.Options.FullSyncOnStartup && m.PointerEnabled()

	var pointer *PointerMirror
	if fullSync {
		pointer = NewPointerMirror(m, d.log.With(zap.String("mapping", m.Name)))
	}

	var seed []string
	err := filepath.WalkDir(m.LocalRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.log.Warn("initial scan error", zap.String("path", path), zap.Error(err))
			return nil
		}
		relNative, err := filepath.Rel(m.LocalRoot, path)
		if err != nil {
			return nil
		}
		rel, ok := NormalizeRel(filepath.ToSlash(relNative))
		if !ok {
			return nil
		}

		seed = append(seed, rel)
		if pointer != nil {
			if applyErr := pointer.Apply(rel, entry.IsDir()); applyErr != nil {
				d.log.Error("initial sync failed for entry",
					zap.String("path", rel), zap.Error(applyErr))
			}
		}
		return nil
	})
	if err != nil {
		d.log.Error("initial scan aborted",
			zap.String("mapping", m.Name), zap.Error(err))
	}
	return seed
}

// forward feeds raw watcher events into the mapping's debounce scheduler.
// Runs on its own goroutine; scheduling happens on the loop.
func (d *Driver) forward(r *mappingRunner, events <-chan ChangeEvent) {
	for ev := range events {
		ev := ev

		rel, ok := NormalizeRel(ev.RelPath)
		if !ok {
			d.log.Warn("root-level event with no relative target, dropping",
				zap.String("mapping", r.mapping.Name))
			continue
		}
		ev.RelPath = rel

		if ev.Kind == Moved {
			dst, ok := NormalizeRel(ev.DestRelPath)
			if !ok {
				d.log.Warn("move event with no relative destination, dropping",
					zap.String("mapping", r.mapping.Name),
					zap.String("source", rel))
				continue
			}
			ev.DestRelPath = dst
		}

		d.loop.Submit(func() {
			r.scheduler.Schedule(ev.RelPath, func(ctx context.Context) {
				r.dispatcher.Dispatch(ctx, ev)
			})
		})
	}
}

// Status snapshots every running mapping for the status server. Safe to
// call from any goroutine.
func (d *Driver) Status() []MappingStatus {
	d.mu.Lock()
	runners := make([]*mappingRunner, len(d.runners))
	copy(runners, d.runners)
	d.mu.Unlock()

	statuses := make([]MappingStatus, 0, len(runners))
	for _, r := range runners {
		tracked := 0
		d.loop.Call(func() { tracked = r.tracker.Len() })
		statuses = append(statuses, MappingStatus{
			Name:           r.mapping.Name,
			LocalRoot:      r.mapping.LocalRoot,
			RemoteEnabled:  r.mapping.RemoteEnabled(),
			PointerEnabled: r.mapping.PointerEnabled(),
			TrackedPaths:   tracked,
			Stats:          r.stats.Snapshot(),
		})
	}
	return statuses
}
