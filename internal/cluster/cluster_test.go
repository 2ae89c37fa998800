package cluster_test

import (
	"testing"
	"time"

	"fieldbook/internal/capture"
	"fieldbook/internal/cluster"
	"fieldbook/internal/geo"
)

var testParams = cluster.Params{MaxGap: 45 * time.Minute, RadiusKM: 2.0}

func at(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return &parsed
}

func loc(lat, lon float64) *geo.Point {
	return &geo.Point{Lat: lat, Lon: lon}
}

func TestGroupEmptyInput(t *testing.T) {
	if got := cluster.Group(nil, testParams); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

func TestGroupSingleItem(t *testing.T) {
	items := []capture.Item{{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.76, -111.89)}}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 1 || len(clusters[0].Items) != 1 {
		t.Fatalf("expected one single-item cluster, got %+v", clusters)
	}
	if clusters[0].Centroid == nil {
		t.Fatal("expected centroid from located item")
	}
	if !clusters[0].StartTime.Equal(clusters[0].EndTime) {
		t.Fatal("single item should have a zero-width window")
	}
}

func TestGroupSingleItemNoMetadata(t *testing.T) {
	clusters := cluster.Group([]capture.Item{{ID: "bare"}}, testParams)
	if len(clusters) != 1 || len(clusters[0].Items) != 1 {
		t.Fatalf("expected one cluster of size 1, got %+v", clusters)
	}
	if clusters[0].Centroid != nil || clusters[0].HasTime() {
		t.Fatalf("expected no centroid or window, got %+v", clusters[0])
	}
}

func TestGroupSameSpotWithinWindow(t *testing.T) {
	// Two photos 20 minutes apart at the same GPS point: one outing.
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.7608, -111.8910)},
		{ID: "b", CapturedAt: at(t, "2026-05-02T08:20:00Z"), Location: loc(40.7608, -111.8910)},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 1 || len(clusters[0].Items) != 2 {
		t.Fatalf("expected one two-item cluster, got %+v", clusters)
	}
}

func TestGroupDistantShotSplits(t *testing.T) {
	// Third photo the same day but ~50 km away: second outing.
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.7608, -111.8910)},
		{ID: "b", CapturedAt: at(t, "2026-05-02T08:20:00Z"), Location: loc(40.7608, -111.8910)},
		{ID: "c", CapturedAt: at(t, "2026-05-02T08:45:00Z"), Location: loc(40.3141, -111.5585)},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 2 {
		t.Fatalf("expected two clusters, got %d", len(clusters))
	}
	if len(clusters[0].Items) != 2 || len(clusters[1].Items) != 1 {
		t.Fatalf("unexpected partition: %+v", clusters)
	}
	if clusters[1].Items[0].ID != "c" {
		t.Fatalf("expected distant shot in second cluster, got %+v", clusters[1].Items)
	}
}

func TestGroupTimeGapSplitsDespiteSameLocation(t *testing.T) {
	// Same backyard, different visit. Time dominates.
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.76, -111.89)},
		{ID: "b", CapturedAt: at(t, "2026-05-03T08:00:00Z"), Location: loc(40.76, -111.89)},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 2 {
		t.Fatalf("expected split on time gap, got %+v", clusters)
	}
}

func TestGroupNoLocationJoinsOnTime(t *testing.T) {
	// GPS missing on the middle shot must not fragment the outing.
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.76, -111.89)},
		{ID: "b", CapturedAt: at(t, "2026-05-02T08:10:00Z")},
		{ID: "c", CapturedAt: at(t, "2026-05-02T08:25:00Z"), Location: loc(40.7605, -111.8905)},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 1 || len(clusters[0].Items) != 3 {
		t.Fatalf("expected one cluster, got %+v", clusters)
	}
}

func TestGroupNoTimestampNoLocationNeverShareWhenGapExceeded(t *testing.T) {
	// Two timestamped items far apart in time with no location data are
	// never in the same cluster.
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z")},
		{ID: "b", CapturedAt: at(t, "2026-05-02T12:00:00Z")},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 2 {
		t.Fatalf("expected split, got %+v", clusters)
	}
}

func TestGroupSortsUnorderedInput(t *testing.T) {
	items := []capture.Item{
		{ID: "late", CapturedAt: at(t, "2026-05-02T18:00:00Z")},
		{ID: "early-1", CapturedAt: at(t, "2026-05-02T08:00:00Z")},
		{ID: "early-2", CapturedAt: at(t, "2026-05-02T08:05:00Z")},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 2 {
		t.Fatalf("expected two clusters, got %+v", clusters)
	}
	if clusters[0].Items[0].ID != "early-1" || clusters[0].Items[1].ID != "early-2" {
		t.Fatalf("expected earliest outing first, got %+v", clusters[0].Items)
	}
	if clusters[1].Items[0].ID != "late" {
		t.Fatalf("expected late shot in second cluster, got %+v", clusters[1].Items)
	}
}

func TestGroupUntimedItemsFormTrailingGroup(t *testing.T) {
	items := []capture.Item{
		{ID: "scan-1"},
		{ID: "timed", CapturedAt: at(t, "2026-05-02T08:00:00Z")},
		{ID: "scan-2"},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 2 {
		t.Fatalf("expected timed cluster plus untimed group, got %+v", clusters)
	}
	last := clusters[len(clusters)-1]
	if len(last.Items) != 2 || last.Items[0].ID != "scan-1" || last.Items[1].ID != "scan-2" {
		t.Fatalf("expected untimed arrival-order group, got %+v", last.Items)
	}
}

func TestGroupAllUntimedDegradesToSingleCluster(t *testing.T) {
	items := []capture.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 1 || len(clusters[0].Items) != 3 {
		t.Fatalf("expected single best-effort cluster, got %+v", clusters)
	}
}

func TestGroupPartitionsExactly(t *testing.T) {
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.76, -111.89)},
		{ID: "b", CapturedAt: at(t, "2026-05-02T09:30:00Z"), Location: loc(40.76, -111.89)},
		{ID: "c", CapturedAt: at(t, "2026-05-02T09:40:00Z")},
		{ID: "d"},
		{ID: "e", CapturedAt: at(t, "2026-05-03T07:00:00Z"), Location: loc(41.0, -112.0)},
	}

	clusters := cluster.Group(items, testParams)

	seen := map[string]int{}
	total := 0
	for _, c := range clusters {
		for _, item := range c.Items {
			seen[item.ID]++
			total++
		}
	}
	if total != len(items) {
		t.Fatalf("expected %d items across clusters, got %d", len(items), total)
	}
	for _, item := range items {
		if seen[item.ID] != 1 {
			t.Fatalf("item %s appears %d times", item.ID, seen[item.ID])
		}
	}
}

func TestGroupCentroidIsRunningMean(t *testing.T) {
	items := []capture.Item{
		{ID: "a", CapturedAt: at(t, "2026-05-02T08:00:00Z"), Location: loc(40.0, -111.0)},
		{ID: "b", CapturedAt: at(t, "2026-05-02T08:10:00Z"), Location: loc(40.01, -111.01)},
	}

	clusters := cluster.Group(items, testParams)
	if len(clusters) != 1 || clusters[0].Centroid == nil {
		t.Fatalf("expected centroid, got %+v", clusters)
	}
	c := *clusters[0].Centroid
	if c.Lat != 40.005 || c.Lon != -111.005 {
		t.Fatalf("unexpected centroid %+v", c)
	}
}
