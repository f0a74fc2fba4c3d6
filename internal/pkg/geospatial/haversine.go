package geospatial

import (
	"math"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(a, b domain.GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c * 1000 // meters
}

// SpanMeters returns the north-south and east-west extent of the box in meters,
// measured along its centre lines.
func SpanMeters(box domain.BoundingBox) (northSouth, eastWest float64) {
	midLat := (box.MinLat + box.MaxLat) / 2
	midLon := (box.MinLon + box.MaxLon) / 2
	northSouth = Haversine(domain.GeoPoint{Lat: box.MinLat, Lon: midLon}, domain.GeoPoint{Lat: box.MaxLat, Lon: midLon})
	eastWest = Haversine(domain.GeoPoint{Lat: midLat, Lon: box.MinLon}, domain.GeoPoint{Lat: midLat, Lon: box.MaxLon})
	return northSouth, eastWest
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
