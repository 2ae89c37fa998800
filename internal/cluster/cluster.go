// Package cluster groups a batch of captured items into candidate outings
// by time and place.
//
// The algorithm is a deterministic greedy walk, not an optimal clustering:
// batches are small and interactively reviewed, so an explainable heuristic
// the user can override beats a global optimum they cannot.
package cluster

import (
	"sort"
	"time"

	"fieldbook/internal/capture"
	"fieldbook/internal/geo"
)

// Params holds the grouping thresholds. Values come from configuration; the
// defaults are tuned, not derived.
type Params struct {
	// MaxGap is the largest capture-time gap between consecutive shots of
	// the same outing.
	MaxGap time.Duration
	// RadiusKM is how far a shot may sit from the outing's running centroid
	// before it starts a new outing.
	RadiusKM float64
}

// Cluster is an ephemeral grouping of items proposed as one outing.
type Cluster struct {
	Items     []capture.Item
	StartTime time.Time
	EndTime   time.Time
	// Centroid is the arithmetic mean of member coordinates; nil when no
	// member carried location data.
	Centroid *geo.Point
}

// HasTime reports whether any member carried a capture timestamp.
func (c Cluster) HasTime() bool { return !c.StartTime.IsZero() }

// builder is the running aggregate for the cluster under construction.
// Methods return new values rather than mutating, keeping the fold pure.
type builder struct {
	items []capture.Item
	mean  geo.Mean
	start time.Time
	end   time.Time
}

func (b builder) empty() bool { return len(b.items) == 0 }

func (b builder) add(item capture.Item) builder {
	items := make([]capture.Item, len(b.items)+1)
	copy(items, b.items)
	items[len(b.items)] = item

	next := builder{items: items, mean: b.mean, start: b.start, end: b.end}
	if item.HasLocation() {
		next.mean = next.mean.Add(*item.Location)
	}
	if item.HasTime() {
		at := *item.CapturedAt
		if next.start.IsZero() || at.Before(next.start) {
			next.start = at
		}
		if next.end.IsZero() || at.After(next.end) {
			next.end = at
		}
	}
	return next
}

func (b builder) finish() Cluster {
	c := Cluster{Items: b.items, StartTime: b.start, EndTime: b.end}
	if center, ok := b.mean.Value(); ok {
		c.Centroid = &center
	}
	return c
}

// withinRadius reports whether the item is close enough to the running
// centroid. When either side lacks location data the check passes: an
// outing must not fragment just because GPS dropped out for one shot.
func (b builder) withinRadius(item capture.Item, radiusKM float64) bool {
	if !item.HasLocation() {
		return true
	}
	center, ok := b.mean.Value()
	if !ok {
		return true
	}
	return geo.DistanceKM(center, *item.Location) <= radiusKM
}

// Group partitions items into ordered clusters. Deterministic given input
// order: every item lands in exactly one cluster, timestamped items are
// grouped by the greedy time-and-distance walk, and items without
// timestamps form a single trailing group held together by arrival order.
func Group(items []capture.Item, params Params) []Cluster {
	if len(items) == 0 {
		return nil
	}

	timed := make([]capture.Item, 0, len(items))
	untimed := make([]capture.Item, 0)
	for _, item := range items {
		if item.HasTime() {
			timed = append(timed, item)
		} else {
			untimed = append(untimed, item)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].CapturedAt.Before(*timed[j].CapturedAt)
	})

	var clusters []Cluster
	var current builder

	for _, item := range timed {
		if current.empty() {
			current = current.add(item)
			continue
		}
		// Gap to the most recent member. Time dominates as the split
		// signal: the same backyard on different days is two outings.
		previous := current.items[len(current.items)-1]
		gap := item.CapturedAt.Sub(*previous.CapturedAt)
		if gap <= params.MaxGap && current.withinRadius(item, params.RadiusKM) {
			current = current.add(item)
			continue
		}
		clusters = append(clusters, current.finish())
		current = builder{}.add(item)
	}
	if !current.empty() {
		clusters = append(clusters, current.finish())
		current = builder{}
	}

	// Items without capture times cluster by arrival order alone, splitting
	// only on a hard spatial contradiction.
	for _, item := range untimed {
		if current.empty() || current.withinRadius(item, params.RadiusKM) {
			current = current.add(item)
			continue
		}
		clusters = append(clusters, current.finish())
		current = builder{}.add(item)
	}
	if !current.empty() {
		clusters = append(clusters, current.finish())
	}

	return clusters
}
