// internal/events/geo.go

package events

import "math"

// kmPerDegreeLat is the length of one degree of latitude on the mean earth radius.
const kmPerDegreeLat = 6371.0 * math.Pi / 180

// BoundingBox is a lat/lng rectangle used to pre-filter nearby events.
// It always contains the circle it was built from; the scorer applies the
// exact haversine cut.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// NewBoundingBox covers every point within radiusKm of (lat, lng). Boxes that
// reach a pole or cross the antimeridian span every longitude.
func NewBoundingBox(lat, lng, radiusKm float64) BoundingBox {
	dLat := radiusKm / kmPerDegreeLat
	box := BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	// Longitude degrees shrink toward the poles; size by the widest latitude.
	cos := math.Cos(math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat)) * math.Pi / 180)
	dLng := dLat / cos
	if lng-dLng < -180 || lng+dLng > 180 {
		return box
	}
	box.MinLng, box.MaxLng = lng-dLng, lng+dLng
	return box
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}
