package outings

import (
	"time"

	"fieldbook/internal/cluster"
	"fieldbook/internal/geo"
	"fieldbook/internal/store"
)

// Params holds the thresholds controlling when a capture cluster merges
// into an already stored outing instead of becoming a new one.
type Params struct {
	// Buffer widens each outing's stored window on both sides when testing
	// temporal proximity, so a shot taken just after a logged session still
	// lands on that session.
	Buffer time.Duration
	// RadiusKM bounds the centroid distance for a spatial match.
	RadiusKM float64
}

// FindMatch returns the stored outing the cluster belongs to, or nil when
// the cluster should become a new outing. A candidate must be temporally
// close (windows overlap, or touch within the buffer) and spatially
// consistent (both sides lack a location, or the centroids sit within the
// radius). Among several candidates the one whose start time is nearest
// the cluster's wins.
func FindMatch(c cluster.Cluster, existing []*store.Outing, params Params) *store.Outing {
	if !c.HasTime() {
		// Without a window there is no proximity to test. Untimed clusters
		// always open a fresh outing rather than guessing.
		return nil
	}

	var best *store.Outing
	var bestGap time.Duration
	for _, outing := range existing {
		if outing == nil {
			continue
		}
		if !windowsTouch(c.StartTime, c.EndTime, outing.StartTime, outing.EndTime, params.Buffer) {
			continue
		}
		if !locationsAgree(c.Centroid, outing.Location, params.RadiusKM) {
			continue
		}
		gap := absDuration(c.StartTime.Sub(outing.StartTime))
		if best == nil || gap < bestGap {
			best = outing
			bestGap = gap
		}
	}
	return best
}

// Widened returns the union of the cluster window and the outing window,
// for persisting after a merge.
func Widened(c cluster.Cluster, outing *store.Outing) (start, end time.Time) {
	start = outing.StartTime
	end = outing.EndTime
	if c.HasTime() {
		if c.StartTime.Before(start) {
			start = c.StartTime
		}
		if c.EndTime.After(end) {
			end = c.EndTime
		}
	}
	return start, end
}

func windowsTouch(aStart, aEnd, bStart, bEnd time.Time, buffer time.Duration) bool {
	bStart = bStart.Add(-buffer)
	bEnd = bEnd.Add(buffer)
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// locationsAgree requires symmetry: a located cluster never merges into an
// unlocated outing and vice versa, since there is no evidence they share a
// place.
func locationsAgree(a, b *geo.Point, radiusKM float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return geo.DistanceKM(*a, *b) <= radiusKM
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
