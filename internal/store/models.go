package store

import (
	"strings"
	"time"

	"fieldbook/internal/geo"
)

// Certainty is the confidence/status tag on an observation.
type Certainty string

const (
	CertaintyConfirmed Certainty = "confirmed"
	CertaintyPossible  Certainty = "possible"
	// CertaintyRejected is a soft-delete marker. Rejected observations stay
	// on disk for audit history and are excluded from reconciliation.
	CertaintyRejected Certainty = "rejected"
)

var certaintySet = map[Certainty]struct{}{
	CertaintyConfirmed: {},
	CertaintyPossible:  {},
	CertaintyRejected:  {},
}

// ParseCertainty converts a string into a known Certainty.
func ParseCertainty(value string) (Certainty, bool) {
	normalized := Certainty(strings.ToLower(strings.TrimSpace(value)))
	_, ok := certaintySet[normalized]
	return normalized, ok
}

// Outing is a persisted trip/session grouping observations by time and
// place. Identity is immutable once created: later merges widen the time
// window, later edits change display fields, neither touches the id.
type Outing struct {
	ID                   string
	StartTime            time.Time
	EndTime              time.Time
	LocationName         string
	EditableLocationName string
	Location             *geo.Point
	Notes                string
	CreatedAt            time.Time
}

// DisplayName returns the user-edited location name when set, otherwise the
// derived one.
func (o Outing) DisplayName() string {
	if name := strings.TrimSpace(o.EditableLocationName); name != "" {
		return name
	}
	return o.LocationName
}

// Observation is one recorded sighting of a species, tied to one outing.
// Observations are the append-only log: several may reference the same
// outing and species, one per source item.
type Observation struct {
	ID          string
	OutingID    string
	SpeciesName string
	Count       int
	Certainty   Certainty
	Notes       string
	CreatedAt   time.Time
}

// DexEntry is the cumulative per-species ledger row, keyed by canonical
// species name across the user's entire history.
type DexEntry struct {
	SpeciesName  string
	FirstSeen    time.Time
	LastSeen     time.Time
	AddedAt      time.Time
	TotalOutings int
	TotalCount   int
	Notes        string
}

// StoredItem records a previously ingested capture for duplicate-upload
// suppression: content hash plus capture time identify a re-upload exactly.
type StoredItem struct {
	ID         string
	Hash       string
	CapturedAt *time.Time
	CreatedAt  time.Time
}
