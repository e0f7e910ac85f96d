// Package monitor runs the long-lived status watcher behind `camctl watch`.
//
// The Watcher polls recording status, the preview screenshot and the next
// scheduled recording on independent intervals, guards the state directory
// with an exclusive file lock so only one watcher runs per installation, and
// re-reads the configuration file when it changes to pick up new intervals.
// Poll failures are logged and the next tick simply tries again.
package monitor
