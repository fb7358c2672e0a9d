// Package notifications delivers run events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when notifications are disabled. Callers
// depend only on the Service interface, so the pipeline and CLI never touch
// HTTP glue directly.
package notifications
