// Package notifications delivers job events to ntfy.
//
// Callers publish an Event with a loosely typed Payload; the service renders
// title, body, tags, and priority and posts them to the configured topic. Each
// event class can be switched off in config, and an empty topic yields a no-op
// service so callers never need to check whether notifications are enabled.
package notifications
