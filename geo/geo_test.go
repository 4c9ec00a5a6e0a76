package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceOneDegreeAtEquator(t *testing.T) {
	// 2*pi*6371/360
	want := 111.19492664455873
	got := Distance(Point{0, 0}, Point{0, 1})
	assert.InDelta(t, want, got, 1e-6)
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	a := Point{Lat: 40.4168, Lng: -3.7038} // Madrid
	b := Point{Lat: 41.3874, Lng: 2.1686}  // Barcelona
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
	assert.InDelta(t, 505, Distance(a, b), 5)
	assert.Equal(t, 0.0, Distance(a, a))
}

func TestBoundingBoxContainsCircle(t *testing.T) {
	centers := []Point{{0, 0}, {40.4168, -3.7038}, {-33.86, 151.2}, {70, 25}}
	for _, c := range centers {
		box := BoundingBox(c, 5)
		for bearing := 0.0; bearing < 360; bearing += 15 {
			p := destination(c, bearing, 5)
			assert.True(t, box.Contains(p), "center %v bearing %v point %v outside %+v", c, bearing, p, box)
		}
	}
}

func TestBoundingBoxNearPoleIsLongitudeUnbounded(t *testing.T) {
	box := BoundingBox(Point{Lat: 89.99, Lng: 10}, 5)
	assert.Equal(t, -180.0, box.MinLng)
	assert.Equal(t, 180.0, box.MaxLng)
	assert.Equal(t, 90.0, box.MaxLat)
}

func TestBoundingBoxAcrossAntimeridian(t *testing.T) {
	box := BoundingBox(Point{Lat: 0, Lng: 179.99}, 10)
	assert.True(t, box.Contains(Point{Lat: 0, Lng: -179.99}))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Point{90, -180}))
	assert.False(t, Valid(Point{90.1, 0}))
	assert.False(t, Valid(Point{0, 181}))
}

// destination walks distKm from p along bearing on the 6371 km sphere.
func destination(p Point, bearingDeg, distKm float64) Point {
	const r = 6371.0
	rad := math.Pi / 180
	lat1, lng1, brg := p.Lat*rad, p.Lng*rad, bearingDeg*rad
	ang := distKm / r
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brg))
	lng2 := lng1 + math.Atan2(math.Sin(brg)*math.Sin(ang)*math.Cos(lat1), math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))
	return Point{Lat: lat2 / rad, Lng: lng2 / rad}
}
