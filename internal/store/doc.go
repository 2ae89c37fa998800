// Package store persists outings, observations, the species ledger, and
// ingested-item records in a SQLite database under the configured data
// directory. A flock on the data directory keeps writers exclusive.
package store
