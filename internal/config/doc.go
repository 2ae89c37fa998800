// Package config loads, normalizes, and validates fieldbook configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FIELDBOOK_IDENTIFY_API_KEY. The Config type centralizes every knob the CLI
// needs, including the clustering and outing-matching thresholds, so the
// grouping heuristics stay tunable without code changes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
