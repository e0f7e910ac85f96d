// Package notifications posts recorder alerts to an ntfy topic.
//
// NewService returns a no-op when no topic is configured, so callers publish
// unconditionally. Each Event maps to a fixed title, tag set and priority;
// the payload only fills in the message.
package notifications
