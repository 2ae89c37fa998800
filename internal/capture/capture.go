// Package capture models freshly uploaded items before they become outings
// and observations, and declares the external metadata-extraction surface.
package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"fieldbook/internal/geo"
)

// Item is one captured photo (or other source record) awaiting clustering.
// Ephemeral; never persisted in this shape.
type Item struct {
	ID         string
	Name       string
	Hash       string
	CapturedAt *time.Time
	Location   *geo.Point
}

// HasTime reports whether capture-time metadata was available.
func (i Item) HasTime() bool { return i.CapturedAt != nil }

// HasLocation reports whether GPS metadata was available.
func (i Item) HasLocation() bool { return i.Location != nil }

// Metadata is what the external extractor recovered from file bytes. Either
// field may be absent.
type Metadata struct {
	CapturedAt *time.Time
	Location   *geo.Point
}

// Extractor reads embedded timestamp/GPS metadata from raw file bytes. The
// implementation is an external collaborator; the pipeline treats it as
// opaque.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Metadata, error)
}

// ContentHash fingerprints file bytes for duplicate-upload suppression.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
