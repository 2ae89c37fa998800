// Package dex maintains the cumulative per-species ledger. The fold over
// observation events is pure; the reconciler wraps it with store access.
package dex
