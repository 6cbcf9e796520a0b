package mirror

import "context"

// Loop is the single cooperative scheduling loop. All path-state mutation
// and all dispatch decisions execute on it; other goroutines hand work in
// through Submit. It is the only synchronization boundary in the engine.
type Loop struct {
	ch   chan func()
	done chan struct{}
}

// NewLoop creates a loop with the given submission buffer.
func NewLoop(buffer int) *Loop {
	return &Loop{
		ch:   make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Run executes submitted functions until ctx is canceled. It must be called
// exactly once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.ch:
			fn()
		}
	}
}

// Submit hands fn to the loop. Returns false if the loop has shut down, in
// which case fn is dropped.
func (l *Loop) Submit(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.ch <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be
// invoked from the loop goroutine itself.
func (l *Loop) Call(fn func()) bool {
	ran := make(chan struct{})
	if !l.Submit(func() {
		fn()
		close(ran)
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}
