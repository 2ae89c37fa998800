// Package notifications delivers batch and ledger events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Per-event toggles let users keep new-species alerts while silencing
// routine batch summaries.
//
// All workflow code depends only on the Service interface, so alternative
// transports slot in without touching callers.
package notifications
