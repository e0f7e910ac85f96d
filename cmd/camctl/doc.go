// Package main hosts the camctl CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into calls on the
// client-side state containers: the auth session, the recording monitor, the
// video catalog and the admin panel. It centralizes configuration resolution,
// session restoration and logging setup so subcommands only deal with
// rendering. Commands other than login, logout, auth status and config refuse
// to run until a login has been remembered.
package main
