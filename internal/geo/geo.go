// Package geo provides the small amount of coordinate math the clustering
// and matching heuristics need.
package geo

import "math"

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance between two points using the
// haversine formula.
func DistanceKM(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Mean is a running arithmetic mean of coordinates. The zero value is empty.
type Mean struct {
	sumLat float64
	sumLon float64
	count  int
}

// Add folds one point into the mean and returns the updated value.
func (m Mean) Add(p Point) Mean {
	return Mean{
		sumLat: m.sumLat + p.Lat,
		sumLon: m.sumLon + p.Lon,
		count:  m.count + 1,
	}
}

// Value returns the current centroid, or ok=false when no point was added.
func (m Mean) Value() (Point, bool) {
	if m.count == 0 {
		return Point{}, false
	}
	return Point{Lat: m.sumLat / float64(m.count), Lon: m.sumLon / float64(m.count)}, true
}
