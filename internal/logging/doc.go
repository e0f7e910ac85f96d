// Package logging configures slog for the control client.
//
// It builds console or JSON handlers from configuration, tees records into a
// daily JSON log file under the configured log directory, prunes old files,
// and offers helpers that stamp component, operation and correlation fields
// onto records. Warnings should go through WarnWithContext so they always
// carry an event type, a hint and an impact.
package logging
