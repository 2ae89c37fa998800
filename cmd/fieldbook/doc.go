// Command fieldbook is the CLI for the bird sighting logbook: it ingests
// photo batches and CSV exports, drives interactive species review, and
// browses the outings and dex stored in the local database.
package main
