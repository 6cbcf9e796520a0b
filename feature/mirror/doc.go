// Package mirror implements the event-driven mirror reconciliation engine.
//
// The engine turns raw, noisy filesystem-change notifications into a small
// number of correct, idempotent operations against a remote backend and/or a
// local tree of pointer files. It tolerates incomplete writes (stability
// probing), duplicate notifications (path-state idempotence checks) and
// transient authentication failures (retry-once via remote.Session).
//
// # Concurrency model
//
// A single scheduling Loop owns all path-state mutation and all dispatch
// decisions. Watch sources run on their own goroutines and hand events to
// the loop through Loop.Submit. Debounce timers and remote calls never block
// the loop: timers fire back into it, and dispatches run on worker
// goroutines that marshal their state reads and mutations through the loop.
// Per relative path at most one debounced action is in flight at a time;
// across paths dispatches run concurrently with no ordering guarantee.
package mirror
