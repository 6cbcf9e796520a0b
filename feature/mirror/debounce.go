package mirror

import (
	"context"
	"time"
)

// Scheduler collapses bursts of events on the same path into one execution:
// scheduling a path cancels any not-yet-fired task for it and starts a fresh
// delay window. If the previous action is already executing, the new action
// is queued and gets its own full debounce cycle once the in-flight one
// finishes, so cancellation can never hit a running action.
//
// All bookkeeping runs on the loop; actions run on their own goroutines.
type Scheduler struct {
	loop  *Loop
	delay time.Duration
	ctx   context.Context
	tasks map[string]*pendingTask
}

// pendingTask exists only between "event received" and "task fired or
// superseded".
type pendingTask struct {
	timer   *time.Timer
	action  func(context.Context)
	running bool
	// queued is the freshest action scheduled while running; it replaces
	// the pending task once the in-flight execution completes.
	queued func(context.Context)
}

// NewScheduler creates a scheduler. ctx bounds the lifetime of all actions.
func NewScheduler(ctx context.Context, loop *Loop, delay time.Duration) *Scheduler {
	return &Scheduler{
		loop:  loop,
		delay: delay,
		ctx:   ctx,
		tasks: make(map[string]*pendingTask),
	}
}

// Schedule registers action for path after the debounce delay, superseding
// any earlier not-yet-fired action for the same path. Must be called from
// the loop.
func (s *Scheduler) Schedule(path string, action func(context.Context)) {
	if t, ok := s.tasks[path]; ok {
		if t.running {
			t.queued = action
			return
		}
		t.timer.Stop()
	}

	t := &pendingTask{action: action}
	t.timer = time.AfterFunc(s.delay, func() {
		s.loop.Submit(func() { s.fire(path, t) })
	})
	s.tasks[path] = t
}

// fire starts the action for path on a worker goroutine. Runs on the loop.
func (s *Scheduler) fire(path string, t *pendingTask) {
	if s.tasks[path] != t {
		// Canceled, or superseded by a schedule that raced the timer.
		return
	}
	t.running = true

	go func() {
		t.action(s.ctx)
		s.loop.Submit(func() { s.finish(path) })
	}()
}

// finish completes the in-flight cycle for path and starts a queued one, if
// any. Runs on the loop.
func (s *Scheduler) finish(path string) {
	t, ok := s.tasks[path]
	if !ok {
		return
	}
	delete(s.tasks, path)
	if t.queued != nil {
		s.Schedule(path, t.queued)
	}
}

// CancelAll drops every pending task without executing it. In-flight
// actions are left to finish on their own; their queued follow-ups are
// discarded with the task map. Must be called from the loop.
func (s *Scheduler) CancelAll() {
	for path, t := range s.tasks {
		if !t.running {
			t.timer.Stop()
		}
		delete(s.tasks, path)
	}
}

// Pending returns the number of paths with a scheduled or running task.
// Must be called from the loop.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}
