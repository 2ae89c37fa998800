package dex

import (
	"time"

	"fieldbook/internal/store"
)

// Event is one observation's contribution to the ledger, stripped down to
// the fields the fold needs.
type Event struct {
	SpeciesName string
	// SeenAt is when the sighting happened, normally the outing start time.
	SeenAt time.Time
	Count  int
	// Confirmed reports whether the observation is confirmed rather than
	// merely possible.
	Confirmed bool
	// FirstForOuting is true when this is the species' first confirmed
	// observation within its outing, counting previously stored ones. Only
	// such events bump TotalOutings, so replaying an outing's observations
	// cannot inflate it.
	FirstForOuting bool
}

// Fold applies a single event to a ledger entry and returns the updated
// entry. A nil entry means the species has never been recorded; the fold
// then creates it with all three dates at the sighting time. Fold never
// mutates its input.
func Fold(entry *store.DexEntry, event Event) store.DexEntry {
	var next store.DexEntry
	if entry == nil {
		next = store.DexEntry{
			SpeciesName: event.SpeciesName,
			FirstSeen:   event.SeenAt,
			LastSeen:    event.SeenAt,
			AddedAt:     event.SeenAt,
		}
	} else {
		next = *entry
		if event.SeenAt.Before(next.FirstSeen) {
			next.FirstSeen = event.SeenAt
		}
		if event.SeenAt.After(next.LastSeen) {
			next.LastSeen = event.SeenAt
		}
	}

	next.TotalCount += event.Count
	if event.Confirmed && event.FirstForOuting {
		next.TotalOutings++
	}
	return next
}
