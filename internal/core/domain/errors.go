package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidCoordinateFormat = errors.New("invalid coordinate format")
	ErrDegenerateBounds        = errors.New("degenerate bounding box")
	ErrInvalidExtent           = errors.New("invalid raster extent")
	ErrNoActiveTestForSession  = errors.New("no active test for session")
	ErrInsufficientData        = errors.New("insufficient data")
	ErrSessionNotFound         = errors.New("session not found")
	ErrMissingSessionID        = errors.New("missing session id")
	ErrInvalidTestID           = errors.New("invalid test id")
	ErrSnapshotNotFound        = errors.New("snapshot not found")
	ErrUnsupportedFormat       = errors.New("unsupported format")
)

// ParseCoordinate converts a decoded JSON value into a finite float.
// Numbers and numeric strings are accepted.
func ParseCoordinate(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case interface{ Float64() (float64, error) }:
		n, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCoordinateFormat, err)
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinateFormat, t)
		}
		f = n
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrInvalidCoordinateFormat)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidCoordinateFormat, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite value", ErrInvalidCoordinateFormat)
	}
	return f, nil
}

// ParseGeoPoint parses a latitude/longitude pair.
func ParseGeoPoint(lat, lon any) (GeoPoint, error) {
	la, err := ParseCoordinate(lat)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("latitude: %w", err)
	}
	lo, err := ParseCoordinate(lon)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("longitude: %w", err)
	}
	return GeoPoint{Lat: la, Lon: lo}, nil
}

// ParseSpeedValue reads a speed-test figure. Clients report "Fail" for a
// failed phase; that and a missing value count as 0. Anything else that is
// not a number is an error.
func ParseSpeedValue(v any) (float64, error) {
	if v == nil {
		return 0, nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "fail") {
			return 0, nil
		}
	}
	f, err := ParseCoordinate(v)
	if err != nil {
		return 0, err
	}
	return f, nil
}
