package domain

import (
	"fmt"
	"math"
)

// boundsEpsilon is the tolerance used for degenerate-box and in-bounds checks.
const boundsEpsilon = 1e-9

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Finite reports whether both coordinates are real numbers.
func (p GeoPoint) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// BoundingBox is the geographic rectangle a floor-plan raster represents.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `json:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `json:"max_lon" mapstructure:"max_lon"`
}

// Validate rejects boxes whose latitude or longitude span is below epsilon.
func (b BoundingBox) Validate() error {
	if !(GeoPoint{b.MinLat, b.MinLon}).Finite() || !(GeoPoint{b.MaxLat, b.MaxLon}).Finite() {
		return fmt.Errorf("%w: non-finite bound", ErrDegenerateBounds)
	}
	if b.MaxLat-b.MinLat < boundsEpsilon {
		return fmt.Errorf("%w: latitude span %g", ErrDegenerateBounds, b.MaxLat-b.MinLat)
	}
	if b.MaxLon-b.MinLon < boundsEpsilon {
		return fmt.Errorf("%w: longitude span %g", ErrDegenerateBounds, b.MaxLon-b.MinLon)
	}
	return nil
}

// Epsilon returns the tolerance used when testing containment.
func (b BoundingBox) Epsilon() float64 { return boundsEpsilon }

// RasterExtent is the pixel size of the output mapping space.
type RasterExtent struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// MaxRasterSide caps client-supplied viewport sizes. A full-size field is
// MaxRasterSide² floats on the wire and in the cache.
const MaxRasterSide = 2048

// Validate requires both dimensions to be positive and bounded.
func (e RasterExtent) Validate() error {
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidExtent, e.Width, e.Height)
	}
	if e.Width > MaxRasterSide || e.Height > MaxRasterSide {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidExtent, e.Width, e.Height, MaxRasterSide)
	}
	return nil
}

// Cells returns Width*Height.
func (e RasterExtent) Cells() int { return e.Width * e.Height }

// Orientation describes how geographic axes land on the raster.
// The name says where north points on the image.
type Orientation string

const (
	// OrientationNorthLeft puts north at x=0 and west at y=0. It is the
	// mirror image of OrientationNorthLeftEastUp along y, so the northwest
	// corner lands at the top-left here but at the bottom-left there. Floor
	// plans drawn for the older east-up layout must select that orientation
	// explicitly; the default does not reproduce it.
	OrientationNorthLeft Orientation = "north-left"
	// OrientationNorthLeftEastUp puts north at x=0 and east at y=0, a plain
	// quarter turn of a north-up map.
	OrientationNorthLeftEastUp Orientation = "north-left-east-up"
	OrientationNorthUp         Orientation = "north-up"
	OrientationNorthRight      Orientation = "north-right"
	OrientationNorthDown       Orientation = "north-down"
)

// ParseOrientation accepts the names above; empty means north-left.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(s); o {
	case "":
		return OrientationNorthLeft, nil
	case OrientationNorthLeft, OrientationNorthLeftEastUp, OrientationNorthUp, OrientationNorthRight, OrientationNorthDown:
		return o, nil
	default:
		return "", fmt.Errorf("unknown orientation %q", s)
	}
}

// MappedPoint is a GeoPoint projected into raster space.
// X and Y are always clamped; InBounds records the pre-clamp containment test.
type MappedPoint struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	InBounds bool `json:"in_bounds"`
}

// Floorplan ties a bounding box to its default raster and axis convention.
type Floorplan struct {
	Bounds      BoundingBox  `json:"bounds"`
	Extent      RasterExtent `json:"extent"`
	Orientation Orientation  `json:"orientation"`
}

// ResolveExtent returns e, or the floor plan's default extent when e is zero.
func (f Floorplan) ResolveExtent(e RasterExtent) (RasterExtent, error) {
	if e.Width == 0 && e.Height == 0 {
		e = f.Extent
	}
	if err := e.Validate(); err != nil {
		return RasterExtent{}, err
	}
	return e, nil
}
