package geo_test

import (
	"math"
	"testing"

	"fieldbook/internal/geo"
)

func TestDistanceKMZeroForSamePoint(t *testing.T) {
	p := geo.Point{Lat: 40.7608, Lon: -111.8910}
	if d := geo.DistanceKM(p, p); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func TestDistanceKMKnownPair(t *testing.T) {
	// Salt Lake City to Provo, roughly 63 km.
	slc := geo.Point{Lat: 40.7608, Lon: -111.8910}
	provo := geo.Point{Lat: 40.2338, Lon: -111.6585}
	d := geo.DistanceKM(slc, provo)
	if d < 55 || d > 70 {
		t.Fatalf("unexpected distance %f", d)
	}
}

func TestDistanceKMSymmetric(t *testing.T) {
	a := geo.Point{Lat: 10, Lon: 20}
	b := geo.Point{Lat: -30, Lon: 150}
	if diff := math.Abs(geo.DistanceKM(a, b) - geo.DistanceKM(b, a)); diff > 1e-9 {
		t.Fatalf("distance should be symmetric, diff %g", diff)
	}
}

func TestMeanFold(t *testing.T) {
	var m geo.Mean
	if _, ok := m.Value(); ok {
		t.Fatal("empty mean should report no value")
	}

	m = m.Add(geo.Point{Lat: 10, Lon: 20})
	m = m.Add(geo.Point{Lat: 20, Lon: 40})
	center, ok := m.Value()
	if !ok {
		t.Fatal("expected a centroid")
	}
	if center.Lat != 15 || center.Lon != 30 {
		t.Fatalf("unexpected centroid %+v", center)
	}
}
