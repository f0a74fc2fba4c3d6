package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// Bound converts a bounding box into an orb bound (x = lon, y = lat).
func Bound(box domain.BoundingBox) orb.Bound {
	return orb.Bound{
		Min: orb.Point{box.MinLon, box.MinLat},
		Max: orb.Point{box.MaxLon, box.MaxLat},
	}
}

// Contains reports whether p lies inside box, tolerating epsilon at the edges.
func Contains(box domain.BoundingBox, p domain.GeoPoint) bool {
	return Bound(box).Pad(box.Epsilon()).Contains(orb.Point{p.Lon, p.Lat})
}

// MapToRaster projects p into the pixel space of extent.
//
// The result is always clamped to [0, dim-1] on both axes; InBounds carries
// the unclamped containment test so callers can tell a pinned edge point from
// a real one. MapToRaster is pure and safe for concurrent use.
func MapToRaster(p domain.GeoPoint, box domain.BoundingBox, extent domain.RasterExtent, o domain.Orientation) (domain.MappedPoint, error) {
	if err := box.Validate(); err != nil {
		return domain.MappedPoint{}, err
	}
	if err := extent.Validate(); err != nil {
		return domain.MappedPoint{}, err
	}
	if !p.Finite() {
		return domain.MappedPoint{}, fmt.Errorf("%w: non-finite point", domain.ErrInvalidCoordinateFormat)
	}

	fx, fy, err := fractions(p, box, o)
	if err != nil {
		return domain.MappedPoint{}, err
	}

	return domain.MappedPoint{
		X:        clampPixel(fx*float64(extent.Width), extent.Width),
		Y:        clampPixel(fy*float64(extent.Height), extent.Height),
		InBounds: Contains(box, p),
	}, nil
}

// fractions returns the position of p along each raster axis as a 0..1 share
// of the box span. Out-of-box points produce values outside that range.
func fractions(p domain.GeoPoint, box domain.BoundingBox, o domain.Orientation) (fx, fy float64, err error) {
	dLat := box.MaxLat - box.MinLat
	dLon := box.MaxLon - box.MinLon

	switch o {
	case domain.OrientationNorthLeft, "":
		return (box.MaxLat - p.Lat) / dLat, (p.Lon - box.MinLon) / dLon, nil
	case domain.OrientationNorthLeftEastUp:
		return (box.MaxLat - p.Lat) / dLat, (box.MaxLon - p.Lon) / dLon, nil
	case domain.OrientationNorthUp:
		return (p.Lon - box.MinLon) / dLon, (box.MaxLat - p.Lat) / dLat, nil
	case domain.OrientationNorthRight:
		return (p.Lat - box.MinLat) / dLat, (p.Lon - box.MinLon) / dLon, nil
	case domain.OrientationNorthDown:
		return (box.MaxLon - p.Lon) / dLon, (p.Lat - box.MinLat) / dLat, nil
	default:
		return 0, 0, fmt.Errorf("unknown orientation %q", o)
	}
}

func clampPixel(v float64, dim int) int {
	if v < 0 {
		return 0
	}
	if max := float64(dim - 1); v > max {
		return dim - 1
	}
	return int(v)
}
