// Package geo computes great-circle distances and the coarse bounding boxes
// used to pre-filter radius queries.
package geo

import (
	"math"

	"github.com/umahmood/haversine"
)

// KmPerDegree is the sieve approximation of one degree of latitude.
const KmPerDegree = 111.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine distance between a and b in kilometres
// on a sphere of radius 6371 km.
func Distance(a, b Point) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lng},
		haversine.Coord{Lat: b.Lat, Lon: b.Lng},
	)
	return km
}

// Box is an inclusive latitude/longitude rectangle.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoundingBox returns a rectangle that contains every point within radiusKm
// of center. Latitude uses 1/KmPerDegree degrees per km. The longitude span is
// widened by 1/cos(lat) at the box edge nearest a pole, and left unbounded
// when the box touches a pole or crosses the antimeridian.
func BoundingBox(center Point, radiusKm float64) Box {
	d := radiusKm / KmPerDegree
	b := Box{
		MinLat: math.Max(center.Lat-d, -90),
		MaxLat: math.Min(center.Lat+d, 90),
		MinLng: -180,
		MaxLng: 180,
	}

	edge := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	if edge >= 90 {
		return b
	}
	lngDelta := d / math.Cos(edge*math.Pi/180)
	minLng, maxLng := center.Lng-lngDelta, center.Lng+lngDelta
	if minLng < -180 || maxLng > 180 {
		return b
	}
	b.MinLng, b.MaxLng = minLng, maxLng
	return b
}

func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Valid reports whether p lies within [-90, 90] x [-180, 180].
func Valid(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
