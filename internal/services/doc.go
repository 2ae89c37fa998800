// Package services defines shared error classification used across the
// sighting pipeline.
//
// Structured error markers plus the Wrap helper translate failures into
// consistent user-facing behaviour: validation problems stop the current
// step, transient/external failures surface as retryable. Use these helpers
// when wiring new pipeline logic so error handling stays uniform.
package services
