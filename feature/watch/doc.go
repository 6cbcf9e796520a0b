// Package watch turns fsnotify notifications for a directory tree into the
// change-event stream consumed by the mirror engine. It watches the root and
// every subdirectory, attaches to directories as they appear, and pairs a
// rename with the create that follows it into a single move event.
package watch
