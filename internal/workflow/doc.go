// Package workflow drives a photo batch from upload through cluster
// confirmation and per-photo review to species-ledger reconciliation.
package workflow
