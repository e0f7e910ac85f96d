// Package services defines shared utilities consumed by the state containers
// and the command gateway.
//
// Key responsibilities:
//   - Context helpers that stamp operation names and correlation identifiers
//     for logging and request tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into transport, declined, rejected-credential and lockout classes.
//   - UserMessage, which turns any failure into the human-readable text a
//     container records in its error field.
//
// Use these helpers when wiring new container operations so error reporting
// stays uniform across the client.
package services
