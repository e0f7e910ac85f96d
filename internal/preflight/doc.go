// Package preflight runs the readiness checks behind `camctl doctor`.
//
// Each check returns a Result instead of an error so the command can print
// every problem at once: local directories, the recording backend, the
// watcher lock and the ntfy topic.
package preflight
