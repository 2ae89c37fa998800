// Package importer ingests CSV sighting logs exported from other tools,
// routing rows through the same outing matching and ledger reconciliation
// as the photo workflow.
package importer
